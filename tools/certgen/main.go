// Package main generates a development Certificate Authority (CA) and a server
// certificate signed by it, writing them under a target directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/SealKeeper/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma separated server host names and IPs")
	flag.Parse()

	if err := run(*dir, strings.Split(*hosts, ",")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("✅ Certificates generated into %s\n", *dir)
}

// run writes ca.crt, ca.key, server.crt and server.key into dir.
func run(dir string, hosts []string) error {
	var cleaned []string
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			cleaned = append(cleaned, h)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	ca, err := certgen.NewCA("SealKeeper CA", 10*365*24*time.Hour)
	if err != nil {
		return err
	}
	caKey, err := ca.KeyPEM()
	if err != nil {
		return err
	}
	serverCert, serverKey, err := ca.IssueServer(cleaned, 365*24*time.Hour)
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{"ca.crt", ca.CertPEM(), 0o644},
		{"ca.key", caKey, 0o600},
		{"server.crt", serverCert, 0o644},
		{"server.key", serverKey, 0o600},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, f.perm); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}
