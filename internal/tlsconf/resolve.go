// Package tlsconf resolves the configured Https option into a server
// tls.Config, generating a self-signed development certificate when no
// material is supplied.
package tlsconf

import (
	"crypto/tls"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smeltjs/smelt/internal/config"
)

// Resolve turns the effective Https option into a tls.Config. A nil config
// with nil error means TLS stays disabled. Relative cert paths resolve
// against root.
func Resolve(https config.HTTPSValue, root string) (*tls.Config, error) {
	if !https.Enabled {
		return nil, nil
	}

	var cert tls.Certificate
	if https.HasMaterial() {
		loaded, err := loadKeyPair(https, root)
		if err != nil {
			return nil, err
		}
		cert = loaded
	} else {
		generated, err := devCertificate()
		if err != nil {
			return nil, fmt.Errorf("generate development certificate: %w", err)
		}
		cert = generated
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}, nil
}

func loadKeyPair(https config.HTTPSValue, root string) (tls.Certificate, error) {
	certPEM, err := materialBytes(https.Cert, root)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read certificate: %w", err)
	}
	keyPEM, err := materialBytes(https.Key, root)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read private key: %w", err)
	}

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}

	if https.CA != "" {
		caPEM, err := materialBytes(https.CA, root)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("read CA chain: %w", err)
		}
		chain, err := pemCertDER(caPEM)
		if err != nil {
			return tls.Certificate{}, err
		}
		// Presented after the leaf so clients can complete the chain.
		pair.Certificate = append(pair.Certificate, chain...)
	}

	return pair, nil
}

// materialBytes accepts either inline PEM or a path to a PEM file.
func materialBytes(value, root string) ([]byte, error) {
	if strings.Contains(value, "-----BEGIN") {
		return []byte(value), nil
	}
	path := value
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return os.ReadFile(path)
}

func pemCertDER(pemBytes []byte) ([][]byte, error) {
	var ders [][]byte
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		ders = append(ders, block.Bytes)
	}
	if len(ders) == 0 {
		return nil, errors.New("CA material contains no certificates")
	}
	return ders, nil
}
