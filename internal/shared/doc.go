// Package shared holds helpers used across the qdbreport packages.
//
// The testutil subpackage provides:
//
//	- BufferedSlogHandler, which captures slog records for assertions
//	- Row and Dec, which build ledger rows and decimals from string literals
//	- SampleUnits, a small unit list for directory tests
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    p := parser.New(period, "LBS", nil, nil, logger)
//	    ...
//	    testutil.AssertLogContains(t, handler, slog.LevelWarn, "unknown sub code")
//	}
package shared
