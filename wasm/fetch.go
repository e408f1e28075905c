//go:build js && wasm
// +build js,wasm

package wasm

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"syscall/js"
)

// FetchClient implements api.HTTPClient with the browser fetch API
type FetchClient struct{}

// NewFetchClient creates a fetch backed HTTP client
func NewFetchClient() *FetchClient {
	return &FetchClient{}
}

// Do performs req with fetch. Bodies travel as Uint8Array so CBOR survives intact.
func (c *FetchClient) Do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
	}

	opts := js.Global().Get("Object").New()
	opts.Set("method", req.Method)

	headers := js.Global().Get("Headers").New()
	for key, values := range req.Header {
		for _, v := range values {
			headers.Call("append", key, v)
		}
	}
	opts.Set("headers", headers)

	if len(bodyBytes) > 0 {
		body := js.Global().Get("Uint8Array").New(len(bodyBytes))
		js.CopyBytesToJS(body, bodyBytes)
		opts.Set("body", body)
	}

	result := await(js.Global().Call("fetch", req.URL.String(), opts))
	if !result.success {
		return nil, fmt.Errorf("fetch failed: %v", result.error)
	}
	jsResp := result.value
	status := jsResp.Get("status").Int()

	respHeaders := make(http.Header)
	forEach := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		// forEach passes (value, key)
		respHeaders.Add(args[1].String(), args[0].String())
		return nil
	})
	jsResp.Get("headers").Call("forEach", forEach)
	forEach.Release()

	bufResult := await(jsResp.Call("arrayBuffer"))
	if !bufResult.success {
		return nil, fmt.Errorf("failed to read response body: %v", bufResult.error)
	}
	view := js.Global().Get("Uint8Array").New(bufResult.value)
	respBytes := make([]byte, view.Get("length").Int())
	js.CopyBytesToGo(respBytes, view)

	return &http.Response{
		Status:     fmt.Sprintf("%d %s", status, jsResp.Get("statusText").String()),
		StatusCode: status,
		Header:     respHeaders,
		Body:       io.NopCloser(bytes.NewReader(respBytes)),
		Request:    req,
	}, nil
}

type awaitResult struct {
	success bool
	value   js.Value
	error   string
}

// await blocks the calling goroutine until promise settles
func await(promise js.Value) awaitResult {
	done := make(chan awaitResult, 1)

	onSuccess := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		done <- awaitResult{success: true, value: args[0]}
		return nil
	})
	defer onSuccess.Release()

	onError := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		errorMsg := "unknown error"
		if len(args) > 0 {
			errorMsg = args[0].String()
		}
		done <- awaitResult{success: false, error: errorMsg}
		return nil
	})
	defer onError.Release()

	promise.Call("then", onSuccess).Call("catch", onError)
	return <-done
}
