package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/jonwraymond/httpkit/client"
	"github.com/jonwraymond/httpkit/resilience"
)

func Example() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"serial":"ONT-4411","state":"online"}`))
	}))
	defer srv.Close()

	c, err := client.New(client.Config{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{}),
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	resp, err := c.Get(context.Background(), "/v1/devices/4411")
	if err != nil {
		fmt.Println(err)
		return
	}

	var device struct {
		Serial string `json:"serial"`
		State  string `json:"state"`
	}
	if err := resp.JSON(&device); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(device.Serial, device.State)
	// Output: ONT-4411 online
}

func Example_typedErrors() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := client.New(client.Config{BaseURL: srv.URL})
	if err != nil {
		fmt.Println(err)
		return
	}

	_, err = c.Get(context.Background(), "/v1/subscribers")

	var authErr *client.AuthError
	if errors.As(err, &authErr) {
		fmt.Println("auth failed with status", authErr.StatusCode)
	}
	// Output: auth failed with status 401
}
