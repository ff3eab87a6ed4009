// Package main provides a C-callable static library for shader preprocessing.
//
// This is built with -buildmode=c-archive to produce libpps.a
// that can be linked into Zig/C/Rust programs.
//
// Build:
//
//	CGO_ENABLED=1 go build -buildmode=c-archive -o build/libpps.a ./cmd/pps-lib
//
// Exported functions:
//
//	pps_process(source, source_len, options_json, options_len, out_code, out_code_len, out_json, out_json_len) -> error_code
//	pps_evaluate(expr, expr_len, options_json, options_len, out_json, out_json_len) -> error_code
//	pps_free(ptr) -> void
//	pps_version() -> *char
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"unsafe"

	"github.com/HugoDaniel/pps/pkg/api"
)

// Error codes
const (
	PPS_OK              = 0
	PPS_ERR_JSON_ENCODE = 1
	PPS_ERR_NULL_INPUT  = 2
	PPS_ERR_JSON_DECODE = 3
)

func decodeOptions(options_json *C.char, options_len C.int) (api.Options, bool) {
	var opts api.Options
	if options_json == nil || options_len <= 0 {
		return opts, true
	}
	if err := json.Unmarshal(C.GoBytes(unsafe.Pointer(options_json), options_len), &opts); err != nil {
		return opts, false
	}
	return opts, true
}

// pps_process preprocesses shader source.
//
// Parameters:
//   - source: pointer to shader source (UTF-8)
//   - source_len: length of source in bytes
//   - options_json: pointer to JSON options (can be NULL for defaults)
//   - options_len: length of options JSON
//   - out_code: pointer to receive processed code (caller must free with pps_free)
//   - out_code_len: pointer to receive code length
//   - out_json: pointer to receive JSON result with diagnostics (caller must free with pps_free)
//   - out_json_len: pointer to receive JSON length
//
// Returns:
//   - 0 on success
//   - non-zero error code on failure
//
//export pps_process
func pps_process(
	source *C.char, source_len C.int,
	options_json *C.char, options_len C.int,
	out_code **C.char, out_code_len *C.int,
	out_json **C.char, out_json_len *C.int,
) C.int {
	if source == nil || out_code == nil || out_code_len == nil {
		return PPS_ERR_NULL_INPUT
	}

	opts, ok := decodeOptions(options_json, options_len)
	if !ok {
		return PPS_ERR_JSON_DECODE
	}

	result := api.ProcessWithOptions(C.GoStringN(source, source_len), opts)

	*out_code = C.CString(result.Code)
	*out_code_len = C.int(len(result.Code))

	if out_json != nil && out_json_len != nil {
		jsonBytes, err := json.Marshal(result)
		if err != nil {
			return PPS_ERR_JSON_ENCODE
		}
		*out_json = C.CString(string(jsonBytes))
		*out_json_len = C.int(len(jsonBytes))
	}

	return PPS_OK
}

// pps_evaluate evaluates one expression and returns its value as JSON.
//
//export pps_evaluate
func pps_evaluate(
	expr *C.char, expr_len C.int,
	options_json *C.char, options_len C.int,
	out_json **C.char, out_json_len *C.int,
) C.int {
	if expr == nil || out_json == nil || out_json_len == nil {
		return PPS_ERR_NULL_INPUT
	}

	opts, ok := decodeOptions(options_json, options_len)
	if !ok {
		return PPS_ERR_JSON_DECODE
	}

	jsonBytes, err := json.Marshal(api.Evaluate(C.GoStringN(expr, expr_len), opts))
	if err != nil {
		return PPS_ERR_JSON_ENCODE
	}
	*out_json = C.CString(string(jsonBytes))
	*out_json_len = C.int(len(jsonBytes))

	return PPS_OK
}

// pps_free frees memory allocated by pps functions.
//
//export pps_free
func pps_free(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

// pps_version returns the library version string. The caller owns the
// returned pointer and frees it with pps_free.
//
//export pps_version
func pps_version() *C.char {
	return C.CString(api.Version)
}

// Required for c-archive build mode
func main() {}
