package encryption

import (
	"fmt"
	"io"

	"doiver/internal/doiver"
)

const testHeader = "TESTENC:"

// TestEncryptor is a trivially reversible Encryptor for tests: it prefixes
// data with a marker instead of encrypting. Never use outside tests.
type TestEncryptor struct{}

var _ doiver.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor { return &TestEncryptor{} }

func (*TestEncryptor) Setup(string) error { return nil }

func (*TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.WriteString(w, testHeader); err != nil {
		return err
	}
	_, err := io.Copy(w, r)
	return err
}

func (*TestEncryptor) Unlock(string) (doiver.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (*TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext strips the marker written by TestEncryptor.
type TestDecryptionContext struct{}

var _ doiver.DecryptionContext = (*TestDecryptionContext)(nil)

func (*TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if string(header) != testHeader {
		return fmt.Errorf("data is not test-encrypted")
	}
	_, err := io.Copy(w, r)
	return err
}
