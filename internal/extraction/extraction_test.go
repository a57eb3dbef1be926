package extraction

import (
	"context"
	"errors"
	"testing"
)

func TestPlainTextExtract(t *testing.T) {
	res, err := PlainText{}.Extract(context.Background(), []byte("hello there"), "note.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello there" || res.Confidence != 1.0 {
		t.Fatalf("got %+v, want full-confidence passthrough", res)
	}
}

func TestPlainTextRejectsBinary(t *testing.T) {
	_, err := PlainText{}.Extract(context.Background(), []byte{0xff, 0xfe, 0x00}, "scan.png")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestPlainTextRejectsEmpty(t *testing.T) {
	res, err := PlainText{}.Extract(context.Background(), nil, "empty.txt")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
	if res == nil || res.FailureReason == "" {
		t.Fatal("failure reason should be populated")
	}
}

func TestBelowFloor(t *testing.T) {
	tests := []struct {
		res   *Result
		floor float64
		want  bool
	}{
		{&Result{Confidence: 0.3}, 0.5, true},
		{&Result{Confidence: 0.5}, 0.5, false},
		{&Result{Confidence: 0.9}, 0.5, false},
		{nil, 0.5, true},
	}
	for _, tt := range tests {
		if got := BelowFloor(tt.res, tt.floor); got != tt.want {
			t.Errorf("BelowFloor(%+v, %v) = %v, want %v", tt.res, tt.floor, got, tt.want)
		}
	}
}
