// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/wscontext/lib/clock"
	"github.com/bureau-foundation/wscontext/lib/config"
	"github.com/bureau-foundation/wscontext/lib/sealed"
	"github.com/bureau-foundation/wscontext/lib/testutil"
)

func writeSealingKey(t *testing.T) (path, publicKey string) {
	t.Helper()
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()
	return testutil.WriteFile(t, "sealing-key", keypair.PrivateKey.String()+"\n"), keypair.PublicKey
}

func TestLoadOpener(t *testing.T) {
	path, publicKey := writeSealingKey(t)

	opener, err := loadOpener(path)
	if err != nil {
		t.Fatalf("loadOpener: %v", err)
	}
	if opener.Recipient() != publicKey {
		t.Errorf("Recipient = %q, want %q", opener.Recipient(), publicKey)
	}

	if _, err := loadOpener(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("loadOpener of a missing file succeeded")
	}
	if _, err := loadOpener(testutil.WriteFile(t, "garbage", "not a key")); err == nil {
		t.Error("loadOpener of a malformed key succeeded")
	}
}

func TestNewTransport(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), testutil.UniqueID("resolver")+".sock")

	client, err := newTransport(socketPath, "")
	if err != nil {
		t.Fatalf("newTransport without token: %v", err)
	}
	if client.SocketPath() != socketPath {
		t.Errorf("SocketPath = %q, want %q", client.SocketPath(), socketPath)
	}

	if _, err := newTransport(socketPath, testutil.WriteFile(t, "token", "service-token")); err != nil {
		t.Errorf("newTransport with token: %v", err)
	}
	if _, err := newTransport(socketPath, testutil.WriteFile(t, "empty-token", "")); err == nil {
		t.Error("newTransport accepted an empty token file")
	}
}

func TestServeFailsWhenAddressInUse(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer occupied.Close()

	keyPath, _ := writeSealingKey(t)
	socketDirectory := testutil.SocketDir(t)

	cfg := config.Default()
	cfg.Server.Address = occupied.Addr().String()
	cfg.Store.Path = filepath.Join(t.TempDir(), "users.db")
	cfg.Store.SealingKeyPath = keyPath
	cfg.Collaborators.ContextResolver = filepath.Join(socketDirectory, "resolver.sock")
	cfg.Collaborators.WorkspaceFactory = filepath.Join(socketDirectory, "factory.sock")
	cfg.Collaborators.InstanceStarter = filepath.Join(socketDirectory, "starter.sock")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = serve(ctx, cfg, clock.Real(), slog.New(slog.DiscardHandler))
	if err == nil {
		t.Fatal("serve succeeded on an occupied address")
	}
	if !strings.Contains(err.Error(), "listening on") {
		t.Errorf("err = %v, want a listen failure", err)
	}
}
