package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestEncryptedFileStorage(t *testing.T) {
	tmpDir := t.TempDir()

	storage, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create encrypted storage: %v", err)
	}

	testData := []byte(`{"type":"service_account","client_email":"loader@example.iam.gserviceaccount.com"}`)

	if err := storage.Save("hiring", testData); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	encrypted, err := os.ReadFile(filepath.Join(tmpDir, "keys", "hiring.enc"))
	if err != nil {
		t.Fatalf("Failed to read encrypted file: %v", err)
	}
	if string(encrypted) == string(testData) {
		t.Error("Data was not encrypted")
	}

	loaded, err := storage.Load("hiring")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(loaded) != string(testData) {
		t.Errorf("Loaded data doesn't match original. Got: %s, Want: %s", loaded, testData)
	}

	if err := storage.Delete("hiring"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if _, err := storage.Load("hiring"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestEncryptedFileStorage_KeyIsReused(t *testing.T) {
	tmpDir := t.TempDir()

	first, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Save("p", []byte("secret")); err != nil {
		t.Fatal(err)
	}

	second, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := second.Load("p")
	if err != nil {
		t.Fatalf("second store could not decrypt: %v", err)
	}
	if string(loaded) != "secret" {
		t.Errorf("got %q, want %q", loaded, "secret")
	}
}

func TestEncryptedFileStorage_TamperedCiphertext(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.Save("p", []byte("secret")); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(tmpDir, "keys", "p.enc")
	data, _ := os.ReadFile(path)
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := storage.Load("p"); err == nil {
		t.Error("expected decrypt failure for tampered file")
	}
}

func TestKeyringStorage(t *testing.T) {
	keyring.MockInit()
	storage := NewKeyringStorage(serviceName)

	if _, err := storage.Load("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
	if err := storage.Save("hiring", []byte("key-json")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := storage.Load("hiring")
	if err != nil || string(got) != "key-json" {
		t.Errorf("Load = %q, %v", got, err)
	}
	if err := storage.Delete("hiring"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if storage.Name() != "system-keyring" {
		t.Errorf("unexpected name %s", storage.Name())
	}
}

func TestNewKeyStore_PrefersKeyring(t *testing.T) {
	keyring.MockInit()
	store, err := NewKeyStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if store.Name() != "system-keyring" {
		t.Errorf("expected keyring store, got %s", store.Name())
	}
}

func TestNewKeyStore_FallsBackToEncryptedFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("no dbus session"))
	t.Cleanup(keyring.MockInit)

	store, err := NewKeyStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if store.Name() != "encrypted-file" {
		t.Errorf("expected encrypted file store, got %s", store.Name())
	}
}

func TestProfileIndex(t *testing.T) {
	index := NewProfileIndex(t.TempDir())

	profiles, err := index.List()
	if err != nil || len(profiles) != 0 {
		t.Fatalf("empty index: %v %v", profiles, err)
	}

	for _, p := range []string{"zeta", "alpha", "zeta"} {
		if err := index.Add(p); err != nil {
			t.Fatal(err)
		}
	}
	profiles, _ = index.List()
	if len(profiles) != 2 || profiles[0] != "alpha" || profiles[1] != "zeta" {
		t.Errorf("unexpected profiles %v", profiles)
	}

	if err := index.Remove("alpha"); err != nil {
		t.Fatal(err)
	}
	profiles, _ = index.List()
	if len(profiles) != 1 || profiles[0] != "zeta" {
		t.Errorf("unexpected profiles after remove %v", profiles)
	}
}
