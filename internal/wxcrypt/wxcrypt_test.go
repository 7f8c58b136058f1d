// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package wxcrypt

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/learning/dailypush/internal/testutil"
)

const (
	testToken  = "QDG6eK"
	testAESKey = "jWmYm7qr5nMoAUwZRjGtBxmz3KA1tkAj3ykkR6q2B2C"
	testCorpID = "wx5823bf96d3bd56c7"
)

func newTestCrypto(t *testing.T) *Crypto {
	t.Helper()
	c, err := New(testToken, testAESKey, testCorpID)
	if err != nil {
		t.Fatal(err)
	}
	c.rand = bytes.NewReader(bytes.Repeat([]byte{7}, 1024))
	return c
}

func TestNew(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		key     string
		wantErr error
	}{
		"valid":     {key: testAESKey},
		"too short": {key: testAESKey[:42], wantErr: ErrIllegalAESKey},
		"too long":  {key: testAESKey + "A", wantErr: ErrIllegalAESKey},
		"not base64": {
			key:     strings.Repeat("!", 43),
			wantErr: ErrIllegalAESKey,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(testToken, tc.key, testCorpID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	t.Parallel()

	got := Signature(testToken, "1409659813", "1372623149", "RypEvHKD8QQKFhvQ6QleEB4J58tiPdvo")
	testutil.AssertEqual(t, got, "65664ba4ebf14da066e746a9e3aa9aac1f19e4ef")
}

func TestVerifyURL(t *testing.T) {
	t.Parallel()

	c := newTestCrypto(t)
	echostr, err := c.encrypt([]byte("1616140317555161061"))
	if err != nil {
		t.Fatal(err)
	}
	const ts, nonce = "1409659589", "263014780"
	sig := Signature(testToken, ts, nonce, echostr)

	got, err := c.VerifyURL(sig, ts, nonce, echostr)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, "1616140317555161061")

	tampered := "0" + sig[1:]
	if sig[0] == '0' {
		tampered = "1" + sig[1:]
	}
	if _, err := c.VerifyURL(tampered, ts, nonce, echostr); !errors.Is(err, ErrValidateSignature) {
		t.Fatalf("tampered signature: want ErrValidateSignature, got %v", err)
	}
	if _, err := c.VerifyURL("", "", "", ""); !errors.Is(err, ErrValidateSignature) {
		t.Fatalf("empty parameters: want ErrValidateSignature, got %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCrypto(t)
	msg := []byte("<xml><MsgType><![CDATA[text]]></MsgType><Content><![CDATA[start]]></Content></xml>")

	body, err := c.EncryptMsg(msg, "1372623149", "1409659813")
	if err != nil {
		t.Fatal(err)
	}

	var reply struct {
		Encrypt      string `xml:"Encrypt"`
		MsgSignature string `xml:"MsgSignature"`
		TimeStamp    string `xml:"TimeStamp"`
		Nonce        string `xml:"Nonce"`
	}
	if err := xml.Unmarshal(body, &reply); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, reply.TimeStamp, "1409659813")
	testutil.AssertEqual(t, reply.Nonce, "1372623149")
	testutil.AssertEqual(t, reply.MsgSignature, Signature(testToken, "1409659813", "1372623149", reply.Encrypt))

	got, err := c.DecryptMsg(body, reply.MsgSignature, reply.TimeStamp, reply.Nonce)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(got), string(msg))
}

func TestDecryptMsgErrors(t *testing.T) {
	t.Parallel()

	c := newTestCrypto(t)
	const ts, nonce = "1409659813", "1372623149"

	validBody, err := c.EncryptMsg([]byte("<xml/>"), nonce, ts)
	if err != nil {
		t.Fatal(err)
	}

	other, err := New(testToken, testAESKey, "another-corp")
	if err != nil {
		t.Fatal(err)
	}
	foreignBody, err := other.EncryptMsg([]byte("<xml/>"), nonce, ts)
	if err != nil {
		t.Fatal(err)
	}

	envelopeWith := func(encrypt string) []byte {
		return []byte("<xml><ToUserName><![CDATA[" + testCorpID + "]]></ToUserName><Encrypt><![CDATA[" + encrypt + "]]></Encrypt></xml>")
	}
	signed := func(body []byte) string {
		var env envelope
		if err := xml.Unmarshal(body, &env); err != nil {
			t.Fatal(err)
		}
		return Signature(testToken, ts, nonce, env.Encrypt)
	}

	cases := map[string]struct {
		body    []byte
		sig     string
		wantErr error
	}{
		"not xml": {
			body:    []byte("definitely not xml"),
			sig:     "x",
			wantErr: ErrParseXML,
		},
		"bad signature": {
			body:    validBody,
			sig:     "deadbeef",
			wantErr: ErrValidateSignature,
		},
		"not base64": {
			body:    envelopeWith("%%%"),
			sig:     Signature(testToken, ts, nonce, "%%%"),
			wantErr: ErrDecodeBase64,
		},
		"wrong length": {
			body:    envelopeWith("YWJj"),
			sig:     Signature(testToken, ts, nonce, "YWJj"),
			wantErr: ErrDecryptAES,
		},
		"other receiver": {
			body:    foreignBody,
			sig:     signed(foreignBody),
			wantErr: ErrValidateReceiverID,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.DecryptMsg(tc.body, tc.sig, ts, nonce)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			var we *Error
			if !errors.As(err, &we) {
				t.Fatalf("want *Error, got %T", err)
			}
			testutil.AssertEqual(t, we.Code, tc.wantErr.(*Error).Code)
		})
	}
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	t.Parallel()

	c := newTestCrypto(t)
	encrypted, err := c.encrypt([]byte("<xml><Content>start</Content></xml>"))
	if err != nil {
		t.Fatal(err)
	}
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string][]byte{
		"last block flipped": func() []byte {
			b := bytes.Clone(data)
			b[len(b)-1] ^= 0xff
			b[len(b)-17] ^= 0xff
			return b
		}(),
		"truncated to one block": data[:blockSize],
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := c.decrypt(base64.StdEncoding.EncodeToString(b))
			if err == nil {
				t.Fatalf("want error, got message %q", got)
			}
			var we *Error
			if !errors.As(err, &we) {
				t.Fatalf("want *Error, got %T: %v", err, err)
			}
		})
	}
}

func TestEncryptUsesReceiverID(t *testing.T) {
	t.Parallel()

	c := newTestCrypto(t)
	encrypted, err := c.encrypt([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len(data)%blockSize, 0)

	got, err := c.decrypt(encrypted)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(got), "hello")
}
