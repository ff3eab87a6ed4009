//go:build js && wasm

// Command pps-wasm is the WebAssembly build of the shader preprocessor.
// It exposes preprocessing functions to JavaScript via syscall/js.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/HugoDaniel/pps/pkg/api"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("__pps", js.ValueOf(map[string]interface{}{
		"process":  js.FuncOf(processJS),
		"evaluate": js.FuncOf(evaluateJS),
		"generate": js.FuncOf(generateJS),
		"version":  api.Version,
	}))

	// Keep the Go runtime alive
	select {}
}

// processJS is the JavaScript-callable process function.
// Signature: __pps.process(source: string, options?: object) => object
//
// Options use the JSON names of api.Options, e.g.
// {static: false, bools: {useShadow: false}, instances: {isRaster: "pass.isRaster"},
// files: {"common.wgsl": "..."}}.
func processJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("process requires at least 1 argument (source)")
	}
	opts, err := parseOptions(args, 1)
	if err != nil {
		return makeError("invalid options: " + err.Error())
	}
	return toJS(api.ProcessWithOptions(args[0].String(), opts))
}

// evaluateJS evaluates one expression.
// Signature: __pps.evaluate(expr: string, options?: object) => {kind, value, text, diagnostics}
func evaluateJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("evaluate requires at least 1 argument (expr)")
	}
	opts, err := parseOptions(args, 1)
	if err != nil {
		return makeError("invalid options: " + err.Error())
	}
	return toJS(api.Evaluate(args[0].String(), opts))
}

// generateJS renders the run-time form of a condition.
// Signature: __pps.generate(expr: string, options?: object) => {code, diagnostics}
func generateJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("generate requires at least 1 argument (expr)")
	}
	opts, err := parseOptions(args, 1)
	if err != nil {
		return makeError("invalid options: " + err.Error())
	}
	code, diags := api.Generate(args[0].String(), opts)
	return toJS(map[string]interface{}{
		"code":        code,
		"diagnostics": diags,
	})
}

// parseOptions reads the options object at args[i] through JSON.
func parseOptions(args []js.Value, i int) (api.Options, error) {
	var opts api.Options
	if len(args) <= i || args[i].IsUndefined() || args[i].IsNull() {
		return opts, nil
	}
	jsonStr := js.Global().Get("JSON").Call("stringify", args[i]).String()
	err := json.Unmarshal([]byte(jsonStr), &opts)
	return opts, err
}

// toJS converts a Go value to a plain JavaScript object through JSON.
func toJS(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return makeError(err.Error())
	}
	return js.Global().Get("JSON").Call("parse", string(data))
}

// makeError creates a result object with an error.
func makeError(msg string) interface{} {
	return map[string]interface{}{
		"code":         "",
		"diagnostics":  []interface{}{},
		"errors":       []interface{}{msg},
		"originalSize": 0,
		"outputSize":   0,
	}
}
