package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("fetch: %w", NotFound("abc"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected %v to match ErrNotFound", err)
	}
	if errors.Is(err, ErrStorageRead) {
		t.Fatalf("not-found must not match storage read")
	}
}

func TestWrapNilStaysNil(t *testing.T) {
	if err := StorageWrite(nil, "put"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Connectivity(cause, "ping")
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost from %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("message should include cause: %q", err.Error())
	}
}

func TestConfigurationNamesField(t *testing.T) {
	err := Configuration("accessKey", "missing required setting")
	if FieldOf(err) != "accessKey" {
		t.Fatalf("field = %q", FieldOf(err))
	}
	if !strings.Contains(err.Error(), "accessKey") {
		t.Fatalf("message should name the field: %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("k"), http.StatusNotFound},
		{Connectivity(errors.New("x"), "get"), http.StatusBadGateway},
		{StorageWrite(errors.New("x"), "put"), http.StatusInternalServerError},
		{StorageRead(errors.New("x"), "list"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
