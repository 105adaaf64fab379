package webhook

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"call_analyzed"}`)
	good := Sign("s3cret", body)

	tests := []struct {
		name      string
		secret    string
		signature string
		want      error
	}{
		{"disabled without secret", "", "", nil},
		{"valid", "s3cret", good, nil},
		{"valid with prefix", "s3cret", "sha256=" + good, nil},
		{"missing", "s3cret", "", ErrMissingSignature},
		{"wrong secret", "other", good, ErrInvalidSignature},
		{"garbage", "s3cret", "abc", ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.secret, body, tt.signature)
			if !errors.Is(err, tt.want) {
				t.Errorf("VerifySignature() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerifySignature_BodyTampered(t *testing.T) {
	sig := Sign("s3cret", []byte(`{"a":1}`))
	if err := VerifySignature("s3cret", []byte(`{"a":2}`), sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifySignature() error = %v, want ErrInvalidSignature", err)
	}
}
