// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package dispatch

import (
	"encoding/xml"
	"strings"
)

// Message is a decrypted callback message.
type Message struct {
	ToUserName   string `xml:"ToUserName"`
	FromUserName string `xml:"FromUserName"`
	CreateTime   int64  `xml:"CreateTime"`
	MsgType      string `xml:"MsgType"`
	Content      string `xml:"Content"`
	MsgID        string `xml:"MsgId"`
	AgentID      string `xml:"AgentID"`
}

// ParseMessage parses a decrypted callback message. The fields are read from
// the children of the root element, whatever its name. MsgType defaults to
// "unknown" and Content is trimmed.
func ParseMessage(b []byte) (*Message, error) {
	m := new(Message)
	if err := xml.Unmarshal(b, m); err != nil {
		return nil, err
	}
	m.MsgType = strings.TrimSpace(m.MsgType)
	if m.MsgType == "" {
		m.MsgType = "unknown"
	}
	m.Content = strings.TrimSpace(m.Content)
	return m, nil
}
