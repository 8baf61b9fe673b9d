package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const (
	pixGUI           = "br.gov.bcb.pix"
	maxMerchantName  = 25
	maxMerchantCity  = 15
	maxBRCodeTxID    = 25
	defaultQRCodePNG = 256
)

// BRCodeInput describes a static PIX "copia e cola" payload
type BRCodeInput struct {
	PixKey       string  `json:"pixKey" validate:"required,max=77"`
	Amount       float64 `json:"amount" validate:"min=0"`
	MerchantName string  `json:"merchantName" validate:"required"`
	MerchantCity string  `json:"merchantCity" validate:"required"`
	TxID         string  `json:"txid"`
}

// BuildStaticBRCode returns the EMV payload for a static PIX charge,
// terminated by its CRC16 field. A zero amount lets the payer choose it.
func BuildStaticBRCode(in BRCodeInput) (string, error) {
	if in.PixKey == "" {
		return "", errors.New("pix key is required")
	}
	if in.Amount < 0 {
		return "", errors.New("amount must not be negative")
	}

	var b strings.Builder
	b.WriteString(emvField("00", "01"))
	b.WriteString(emvField("26", emvField("00", pixGUI)+emvField("01", in.PixKey)))
	b.WriteString(emvField("52", "0000"))
	b.WriteString(emvField("53", "986"))
	if in.Amount > 0 {
		b.WriteString(emvField("54", decimal.NewFromFloat(in.Amount).StringFixed(2)))
	}
	b.WriteString(emvField("58", "BR"))
	b.WriteString(emvField("59", truncate(in.MerchantName, maxMerchantName)))
	b.WriteString(emvField("60", truncate(in.MerchantCity, maxMerchantCity)))
	b.WriteString(emvField("62", emvField("05", brCodeTxID(in.TxID))))
	b.WriteString("6304")

	payload := b.String()
	return payload + fmt.Sprintf("%04X", crc16CCITT([]byte(payload))), nil
}

// EncodeQRCodePNG renders content as a PNG QR code of size pixels
func EncodeQRCodePNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr code content is empty")
	}
	if size <= 0 {
		size = defaultQRCodePNG
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

func emvField(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// brCodeTxID keeps only alphanumerics; an empty id becomes "***"
func brCodeTxID(txid string) string {
	var b strings.Builder
	for _, r := range txid {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "***"
	}
	return truncate(out, maxBRCodeTxID)
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// crc16CCITT is CRC-16/CCITT-FALSE: polynomial 0x1021, initial value 0xFFFF
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
