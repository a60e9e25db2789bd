package secrets

import (
	"context"
	"testing"
)

func TestNewStore_Providers(t *testing.T) {
	for _, provider := range []string{"memory", "env", ""} {
		store, err := NewStore(Config{Provider: provider})
		if err != nil {
			t.Fatalf("NewStore(%q): %v", provider, err)
		}
		if store == nil {
			t.Fatalf("NewStore(%q): nil store", provider)
		}
	}
}

func TestMemoryStoreBasicContract(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, "missing"); err == nil {
		t.Error("Get(missing) should fail")
	}

	if err := store.Set(ctx, "screening/openai_api_key", "sk-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, err := store.Get(ctx, "screening/openai_api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "sk-1" {
		t.Errorf("Get = %q, want sk-1", val)
	}

	keys, err := store.List(ctx, "screening/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("List returned %d keys, want 1", len(keys))
	}

	if err := store.Delete(ctx, "screening/openai_api_key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "screening/openai_api_key"); err == nil {
		t.Error("Get after Delete should fail")
	}
}

func TestEnvStore(t *testing.T) {
	ctx := context.Background()
	store := NewEnvStore()
	t.Setenv("SCREENING_TEST_SECRET", "v1")

	val, err := store.Get(ctx, "SCREENING_TEST_SECRET")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "v1" {
		t.Errorf("Get = %q, want v1", val)
	}

	if _, err := store.Get(ctx, "SCREENING_TEST_SECRET_MISSING"); err == nil {
		t.Error("Get of unset variable should fail")
	}
}

func TestEnvStore_PathStyleKeys(t *testing.T) {
	ctx := context.Background()
	store := NewEnvStore()
	t.Setenv("OPENAI_API_KEY", "sk-env")

	val, err := store.Get(ctx, "openai/api-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "sk-env" {
		t.Errorf("Get = %q, want sk-env", val)
	}
}

func TestMemoryStoreSeeded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStoreSeeded(map[string]string{"OPENAI_API_KEY": "sk-seed"})

	val, err := store.Get(ctx, "OPENAI_API_KEY")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "sk-seed" {
		t.Errorf("Get = %q, want sk-seed", val)
	}
}
