package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Plivo XML answer-time document builder. Mirrors twiml.go's shape but
// targets Plivo's verb set, which differs enough (Stream content-body vs
// Twilio's attribute-based Connect/Stream) to warrant its own builder
// rather than a shared one.

type plivoResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type plivoHangup struct {
	XMLName xml.Name `xml:"Hangup"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type plivoStream struct {
	XMLName             xml.Name `xml:"Stream"`
	URL                 string   `xml:",chardata"`
	Bidirectional       bool     `xml:"bidirectional,attr"`
	KeepCallAlive       bool     `xml:"keepCallAlive,attr"`
	ContentType         string   `xml:"contentType,attr,omitempty"`
	ExtraHeaders        string   `xml:"extraHeaders,attr,omitempty"`
}

// RenderPlivoXMLConnectStream is the Plivo equivalent of
// RenderTwiMLConnectStream: it connects a dialed call to the bot's media
// stream via Plivo's bidirectional <Stream> verb.
func RenderPlivoXMLConnectStream(callUUID, botWsURL string, dynamicFields map[string]string) (string, error) {
	if strings.TrimSpace(botWsURL) == "" {
		return "", errors.New("telephony: bot_ws_url required")
	}

	headers := "callUUID=" + callUUID
	for k, v := range dynamicFields {
		headers += "," + k + "=" + v
	}

	r := plivoResponse{Verbs: []any{plivoStream{
		URL:           botWsURL,
		Bidirectional: true,
		KeepCallAlive: true,
		ContentType:   "audio/x-mulaw;rate=8000",
		ExtraHeaders:  headers,
	}}}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPlivoXMLHangup renders a bare hangup document carrying reason.
func RenderPlivoXMLHangup(reason string) (string, error) {
	r := plivoResponse{Verbs: []any{plivoHangup{Reason: reason}}}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
