// Package errors provides structured error types for the bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the argument path, the expected descriptor, the
// stringified script value and the module/method the failure belongs to.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindConversion).
//		Path("0").
//		Descriptor("int").
//		Value(v, "x").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Conversion([]string{"0"}, "int", v, "x")
//	err := errors.InvalidArgumentCount("add", 3, 2)
//
// Host bodies report script-visible codes with Coded:
//
//	return nil, errors.Coded("ERR_NOT_READY", "camera is not ready")
//
// Classify maps any error to the code and message thrown into the script.
// All errors implement the standard error interface and support errors.Is/As.
package errors
