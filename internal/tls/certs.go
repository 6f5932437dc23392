// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package tls generates and loads the certificates that secure the gRPC
// transport.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
)

// File names inside a certs directory.
const (
	CACertFile = "root-ca.crt"
	CAKeyFile  = "root-ca.key"
)

// Error codes.
const (
	CodeGenerateFailed = "TLS_GENERATE_FAILED"
	CodeSaveFailed     = "TLS_SAVE_FAILED"
	CodeLoadFailed     = "TLS_LOAD_FAILED"
)

const (
	caValidity     = 10 * 365 * 24 * time.Hour
	leafValidity   = 365 * 24 * time.Hour
	hiveURIScheme  = "domainhive"
	caCommonPrefix = "DomainHive CA "
)

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// Cert holds a leaf certificate, its key and the base name it is saved under.
type Cert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	Name        string
}

// HiveID returns the hive identifier embedded in the CA.
func (ca *CA) HiveID() string {
	for _, u := range ca.Certificate.URIs {
		if u.Scheme == hiveURIScheme && u.Host == "hive" {
			return strings.TrimPrefix(u.Path, "/")
		}
	}
	return strings.TrimPrefix(ca.Certificate.Subject.CommonName, caCommonPrefix)
}

func newSerial() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}

// GenerateCA creates a root CA for hiveID. The ID is recorded in the common
// name and as a domainhive://hive/<id> URI SAN.
func GenerateCA(hiveID string) (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code(CodeGenerateFailed).With("step", "ca key").Wrap(err)
	}
	serial, err := newSerial()
	if err != nil {
		return nil, oops.Code(CodeGenerateFailed).With("step", "serial").Wrap(err)
	}
	hiveURI := &url.URL{Scheme: hiveURIScheme, Host: "hive", Path: "/" + hiveID}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"DomainHive"},
			CommonName:   caCommonPrefix + hiveID,
		},
		NotBefore:             now,
		NotAfter:              now.Add(caValidity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		URIs:                  []*url.URL{hiveURI},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code(CodeGenerateFailed).With("step", "ca certificate").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code(CodeGenerateFailed).With("step", "ca parse").Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateCert issues a leaf certificate signed by ca. It is valid for both
// server and client authentication. hosts become DNS or IP SANs; localhost
// and 127.0.0.1 are always included.
func GenerateCert(ca *CA, name string, hosts ...string) (*Cert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code(CodeGenerateFailed).With("step", "leaf key").Wrap(err)
	}
	serial, err := newSerial()
	if err != nil {
		return nil, oops.Code(CodeGenerateFailed).With("step", "serial").Wrap(err)
	}

	dnsNames := []string{"localhost", "domainhive-" + ca.HiveID()}
	ips := []net.IP{net.ParseIP("127.0.0.1")}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			ips = append(ips, ip)
			continue
		}
		dnsNames = append(dnsNames, h)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"DomainHive"},
			CommonName:   "domainhive-" + name,
		},
		NotBefore:   now,
		NotAfter:    now.Add(leafValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:    dnsNames,
		IPAddresses: ips,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code(CodeGenerateFailed).With("step", "leaf certificate").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code(CodeGenerateFailed).With("step", "leaf parse").Wrap(err)
	}
	return &Cert{Certificate: cert, PrivateKey: key, Name: name}, nil
}

// SaveCertificates writes the CA as root-ca.crt/.key and each leaf as
// <name>.crt/.key into certsDir.
func SaveCertificates(certsDir string, ca *CA, certs ...*Cert) error {
	if err := os.MkdirAll(certsDir, 0o700); err != nil {
		return oops.Code(CodeSaveFailed).With("dir", certsDir).Wrap(err)
	}
	if err := savePair(certsDir, "root-ca", ca.Certificate, ca.PrivateKey); err != nil {
		return err
	}
	for _, c := range certs {
		if err := savePair(certsDir, c.Name, c.Certificate, c.PrivateKey); err != nil {
			return err
		}
	}
	return nil
}

// LoadCA reads root-ca.crt and root-ca.key from certsDir.
func LoadCA(certsDir string) (*CA, error) {
	certPEM, err := os.ReadFile(filepath.Clean(filepath.Join(certsDir, CACertFile)))
	if err != nil {
		return nil, oops.Code(CodeLoadFailed).With("file", CACertFile).Wrap(err)
	}
	keyPEM, err := os.ReadFile(filepath.Clean(filepath.Join(certsDir, CAKeyFile)))
	if err != nil {
		return nil, oops.Code(CodeLoadFailed).With("file", CAKeyFile).Wrap(err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, oops.Code(CodeLoadFailed).With("file", CACertFile).Errorf("no PEM data")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, oops.Code(CodeLoadFailed).With("file", CACertFile).Wrap(err)
	}

	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, oops.Code(CodeLoadFailed).With("file", CAKeyFile).Errorf("no PEM data")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code(CodeLoadFailed).With("file", CAKeyFile).Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// LoadServerTLS builds a TLS 1.3 server config from <name>.crt/.key.
// Clients must present a certificate signed by the CA in certsDir.
func LoadServerTLS(certsDir, name string) (*cryptotls.Config, error) {
	cert, pool, err := loadPairAndPool(certsDir, name)
	if err != nil {
		return nil, err
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   cryptotls.RequireAndVerifyClientCert,
		MinVersion:   cryptotls.VersionTLS13,
	}, nil
}

// LoadClientTLS builds a TLS 1.3 client config from <name>.crt/.key that
// trusts the CA in certsDir. serverName may be empty to use the dial host.
func LoadClientTLS(certsDir, name, serverName string) (*cryptotls.Config, error) {
	cert, pool, err := loadPairAndPool(certsDir, name)
	if err != nil {
		return nil, err
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   serverName,
		MinVersion:   cryptotls.VersionTLS13,
	}, nil
}

func loadPairAndPool(certsDir, name string) (cryptotls.Certificate, *x509.CertPool, error) {
	certPath := filepath.Clean(filepath.Join(certsDir, name+".crt"))
	keyPath := filepath.Clean(filepath.Join(certsDir, name+".key"))

	cert, err := cryptotls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return cryptotls.Certificate{}, nil, oops.Code(CodeLoadFailed).With("name", name).Wrap(err)
	}

	caPEM, err := os.ReadFile(filepath.Clean(filepath.Join(certsDir, CACertFile)))
	if err != nil {
		return cryptotls.Certificate{}, nil, oops.Code(CodeLoadFailed).With("file", CACertFile).Wrap(err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return cryptotls.Certificate{}, nil, oops.Code(CodeLoadFailed).With("file", CACertFile).Errorf("no usable CA certificate")
	}
	return cert, pool, nil
}

func savePair(dir, name string, cert *x509.Certificate, key *ecdsa.PrivateKey) error {
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code(CodeSaveFailed).With("name", name).Wrap(err)
	}
	if err := writePEM(filepath.Join(dir, name+".crt"), "CERTIFICATE", cert.Raw); err != nil {
		return err
	}
	return writePEM(filepath.Join(dir, name+".key"), "EC PRIVATE KEY", keyDER)
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code(CodeSaveFailed).With("file", path).Wrap(err)
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = f.Close()
		return oops.Code(CodeSaveFailed).With("file", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code(CodeSaveFailed).With("file", path).Wrap(err)
	}
	return nil
}
