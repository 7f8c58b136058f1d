// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package wxcrypt implements the WeCom callback message encryption scheme
// (WXBizMsgCrypt) on top of the WeChat SDK's crypto helpers.
//
// Every callback carries a SHA-1 signature over the sorted token, timestamp,
// nonce and ciphertext. The ciphertext is AES-256-CBC with the IV set to the
// first 16 bytes of the key and PKCS#7 padding to 32 bytes. The plaintext is
// 16 random bytes, the big-endian uint32 message length, the message and the
// receiver ID (the corp ID for enterprise apps).
package wxcrypt

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/silenceper/wechat/v2/util"
)

// Error is an error with a WeCom error code.
type Error struct {
	Code int
	msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("wxcrypt: %s (%d)", e.msg, e.Code) }

// Errors returned by this package. They match the error codes of the
// reference WeCom libraries.
var (
	ErrValidateSignature  = &Error{-40001, "signature validation failed"}
	ErrParseXML           = &Error{-40002, "parsing XML failed"}
	ErrComputeSignature   = &Error{-40003, "computing signature failed"}
	ErrIllegalAESKey      = &Error{-40004, "illegal AES key"}
	ErrValidateReceiverID = &Error{-40005, "receiver ID validation failed"}
	ErrEncryptAES         = &Error{-40006, "AES encryption failed"}
	ErrDecryptAES         = &Error{-40007, "AES decryption failed"}
	ErrIllegalBuffer      = &Error{-40008, "illegal buffer"}
	ErrEncodeBase64       = &Error{-40009, "base64 encoding failed"}
	ErrDecodeBase64       = &Error{-40010, "base64 decoding failed"}
	ErrGenReturnXML       = &Error{-40011, "generating reply XML failed"}
)

const blockSize = 32

// Crypto signs, verifies, encrypts and decrypts callback payloads for one
// WeCom application.
type Crypto struct {
	token      string
	key        []byte
	receiverID string

	rand io.Reader
	now  func() time.Time
}

// New returns a Crypto for the given callback token, 43-character
// EncodingAESKey and receiver ID.
func New(token, encodingAESKey, receiverID string) (*Crypto, error) {
	if len(encodingAESKey) != 43 {
		return nil, ErrIllegalAESKey
	}
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil || len(key) != 32 {
		return nil, ErrIllegalAESKey
	}
	return &Crypto{
		token:      token,
		key:        key,
		receiverID: receiverID,
		rand:       rand.Reader,
		now:        time.Now,
	}, nil
}

// Signature returns the signature of the callback parameters.
func Signature(token, timestamp, nonce, encrypted string) string {
	return util.Signature(token, timestamp, nonce, encrypted)
}

func (c *Crypto) verify(signature, timestamp, nonce, encrypted string) error {
	want := Signature(c.token, timestamp, nonce, encrypted)
	if subtle.ConstantTimeCompare([]byte(want), []byte(signature)) != 1 {
		return ErrValidateSignature
	}
	return nil
}

// VerifyURL checks the signature of a URL verification request and returns
// the decrypted echo string.
func (c *Crypto) VerifyURL(signature, timestamp, nonce, echostr string) (string, error) {
	if err := c.verify(signature, timestamp, nonce, echostr); err != nil {
		return "", err
	}
	msg, err := c.decrypt(echostr)
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

type envelope struct {
	XMLName    xml.Name `xml:"xml"`
	ToUserName string   `xml:"ToUserName"`
	AgentID    string   `xml:"AgentID"`
	Encrypt    string   `xml:"Encrypt"`
}

// DecryptMsg checks the signature of an encrypted callback body and returns
// the decrypted message XML.
func (c *Crypto) DecryptMsg(body []byte, signature, timestamp, nonce string) ([]byte, error) {
	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseXML, err)
	}
	if err := c.verify(signature, timestamp, nonce, env.Encrypt); err != nil {
		return nil, err
	}
	return c.decrypt(env.Encrypt)
}

// EncryptMsg encrypts a reply message and returns the XML to send back. An
// empty timestamp means the current time.
func (c *Crypto) EncryptMsg(reply []byte, nonce, timestamp string) ([]byte, error) {
	if timestamp == "" {
		timestamp = strconv.FormatInt(c.now().Unix(), 10)
	}
	encrypted, err := c.encrypt(reply)
	if err != nil {
		return nil, err
	}
	signature := Signature(c.token, timestamp, nonce, encrypted)

	var buf bytes.Buffer
	if _, err := fmt.Fprintf(&buf, replyTmpl, encrypted, signature, timestamp, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenReturnXML, err)
	}
	return buf.Bytes(), nil
}

const replyTmpl = `<xml>
<Encrypt><![CDATA[%s]]></Encrypt>
<MsgSignature><![CDATA[%s]]></MsgSignature>
<TimeStamp>%s</TimeStamp>
<Nonce><![CDATA[%s]]></Nonce>
</xml>`

func (c *Crypto) encrypt(msg []byte) (string, error) {
	random := make([]byte, 16)
	if _, err := io.ReadFull(c.rand, random); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptAES, err)
	}
	ciphertext := util.AESEncryptMsg(random, msg, c.receiverID, c.key)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (c *Crypto) decrypt(encrypted string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeBase64, err)
	}
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecryptAES
	}

	_, msg, receiverID, err := util.AESDecryptMsg(data, c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptAES, err)
	}
	if subtle.ConstantTimeCompare(receiverID, []byte(c.receiverID)) != 1 {
		return nil, ErrValidateReceiverID
	}
	return msg, nil
}
