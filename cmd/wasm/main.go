//go:build js && wasm
// +build js,wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"syscall/js"

	"github.com/anchorageoss/tlsn-verifier/api"
	"github.com/anchorageoss/tlsn-verifier/wasm"
)

func main() {
	c := make(chan struct{})

	js.Global().Set("verifyPresentation", js.FuncOf(verifyPresentationWrapper))
	js.Global().Set("verifyPresentationRemote", js.FuncOf(verifyRemoteWrapper))

	println("TLS Notary verifier WASM loaded")

	<-c
}

// verifyPresentationWrapper exposes verifyPresentation(json, notaryKeyHex, options?)
// and returns a Promise resolving to the output JSON string
func verifyPresentationWrapper(this js.Value, args []js.Value) interface{} {
	return promise(func() (string, error) {
		if len(args) < 1 {
			return "", errors.New("expected arguments: presentation, notaryKeyHex?, options?")
		}
		raw := []byte(args[0].String())

		notaryKeyHex := ""
		if len(args) > 1 && args[1].Type() == js.TypeString {
			notaryKeyHex = args[1].String()
		}

		var opts wasm.Options
		if len(args) > 2 && args[2].Type() == js.TypeObject {
			encoded := js.Global().Get("JSON").Call("stringify", args[2]).String()
			if err := json.Unmarshal([]byte(encoded), &opts); err != nil {
				return "", err
			}
		}

		return wasm.Verify(context.Background(), raw, notaryKeyHex, opts)
	})
}

// verifyRemoteWrapper exposes verifyPresentationRemote(json, serverURL)
func verifyRemoteWrapper(this js.Value, args []js.Value) interface{} {
	return promise(func() (string, error) {
		if len(args) < 2 {
			return "", errors.New("expected arguments: presentation, serverURL")
		}

		client, err := api.NewClient(args[1].String(), wasm.NewFetchClient())
		if err != nil {
			return "", err
		}
		out, err := client.Verify(context.Background(), []byte(args[0].String()))
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(out)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	})
}

// promise runs fn off the event loop and settles a JavaScript Promise with its result.
// The executor is released once the promise settles.
func promise(fn func() (string, error)) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve := args[0]
		reject := args[1]

		go func() {
			defer handler.Release()
			result, err := fn()
			if err != nil {
				reject.Invoke(js.ValueOf(err.Error()))
				return
			}
			resolve.Invoke(js.ValueOf(result))
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}
