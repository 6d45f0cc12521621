package ctxutil

import (
	"context"
	"testing"
)

func TestUserID(t *testing.T) {
	if _, ok := GetUserID(context.Background()); ok {
		t.Fatal("empty context should not carry a user id")
	}
	if _, ok := GetUserID(WithUserID(context.Background(), "")); ok {
		t.Fatal("blank user id should be treated as missing")
	}
	got, ok := GetUserID(WithUserID(context.Background(), "u-1"))
	if !ok || got != "u-1" {
		t.Fatalf("GetUserID() = %q, %v", got, ok)
	}
	if GetRequestID(WithRequestID(context.Background(), "r-1")) != "r-1" {
		t.Fatal("request id not propagated")
	}
}
