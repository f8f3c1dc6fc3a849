//go:build ruleguard

// Package gorules contains project linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags goroutines that pair Add and Done by hand where wg.Go fits.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }()").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("consider $wg.Go(), which calls Add(1) itself")
}

// StructuredLogging keeps ad hoc printing out of library packages. Output
// goes through internal/logger so it carries module and level.
func StructuredLogging(m dsl.Matcher) {
	m.Import("log")

	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report("use the module logger from internal/logger instead of the standard log package")

	m.Match(`fmt.Printf($*_)`, `fmt.Println($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the module logger from internal/logger instead of printing to stdout")
}

// EnhancedErrors nudges library code to the error builder so failures carry
// component and category.
func EnhancedErrors(m dsl.Matcher) {
	m.Match(`fmt.Errorf($msg, $*args)`).
		Where(m.File().PkgPath.Matches(`/internal/(lifecycle|host|audio)/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("prefer errors.Newf(...).Component(...).Category(...).Build() from internal/errors")
}

// TestContext prefers the test-scoped context, cancelled when the test ends.
func TestContext(m dsl.Matcher) {
	m.Match(`context.Background()`, `context.TODO()`).
		Where(m.File().Name.Matches(`_test\.go$`) && m.File().PkgPath.Matches(`/internal/`)).
		Report("use t.Context() in tests unless the context must outlive the test")
}

// MutexUnlockDefer catches Lock calls whose Unlock is not deferred right away.
func MutexUnlockDefer(m dsl.Matcher) {
	m.Match(`$mu.Lock(); $next`).
		Where(!m["next"].Text.Matches(`^defer .*\.Unlock\(\)$`) && m["mu"].Type.Is("*sync.Mutex")).
		Report("$mu.Lock() not followed by defer $mu.Unlock(), check every return path").
		At(m["mu"])
}
