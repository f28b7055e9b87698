package storage

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("http://assets/")

	data := []byte("hello")
	if err := store.Put(ctx, "stories/a/1", data, "text/plain"); err != nil {
		t.Fatal(err)
	}
	data[0] = 'j'

	got, err := store.Get(ctx, "stories/a/1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("Get() = %q, store must copy on Put", got)
	}
	if ct := store.ContentType("stories/a/1"); ct != "text/plain" {
		t.Errorf("ContentType() = %q", ct)
	}

	_ = store.Put(ctx, "stories/b/2", nil, "")
	_ = store.Put(ctx, "other/3", nil, "")
	keys, _ := store.List(ctx, "stories/")
	if len(keys) != 2 || keys[0] != "stories/a/1" || keys[1] != "stories/b/2" {
		t.Errorf("List() = %v", keys)
	}

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get(missing) err = %v", err)
	}
	if u := store.PublicURL("/stories/a/1"); u != "http://assets/stories/a/1" {
		t.Errorf("PublicURL() = %q", u)
	}
	if u := NewMemoryStore("").PublicURL("k"); u != "" {
		t.Errorf("PublicURL() without base = %q, want empty", u)
	}
}
