package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"strings"

	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	VoucherPayloadPrefix = "BB1:"
	VoucherIDLength      = 26

	voucherNonceSize = 6
	voucherMACSize   = 10
	defaultQRSize    = 256
	maxQRSize        = 1024
)

var voucherEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// VoucherService mints and parses voucher ids. An id is the base32 form of
// nonce || HMAC-SHA256(key, customer || mission || nonce) truncated, so it
// cannot be guessed without the key and can be re-derived for audit.
type VoucherService struct {
	key []byte
	log logger.Logger
}

func NewVoucherService(signingKey string) *VoucherService {
	return &VoucherService{
		key: []byte(signingKey),
		log: logger.New("voucherService"),
	}
}

func (s *VoucherService) NewNonce() ([]byte, error) {
	nonce := make([]byte, voucherNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, s.log.Function("NewNonce").Err("failed to read nonce", err)
	}
	return nonce, nil
}

func (s *VoucherService) Mint(customerID, missionID uuid.UUID, nonce []byte) (string, error) {
	if len(nonce) != voucherNonceSize {
		return "", s.log.Function("Mint").ErrorWithType(
			types.ErrValidation,
			"invalid nonce size",
			"size", len(nonce),
		)
	}

	raw := make([]byte, 0, voucherNonceSize+voucherMACSize)
	raw = append(raw, nonce...)
	raw = append(raw, s.mac(customerID, missionID, nonce)...)

	return voucherEncoding.EncodeToString(raw), nil
}

// Verify reports whether voucherID was minted by this key for the pair.
func (s *VoucherService) Verify(customerID, missionID uuid.UUID, voucherID string) bool {
	raw, err := voucherEncoding.DecodeString(voucherID)
	if err != nil || len(raw) != voucherNonceSize+voucherMACSize {
		return false
	}

	nonce, tag := raw[:voucherNonceSize], raw[voucherNonceSize:]
	return hmac.Equal(tag, s.mac(customerID, missionID, nonce))
}

func (s *VoucherService) Encode(voucherID string) string {
	return VoucherPayloadPrefix + voucherID
}

// Decode accepts a scanned payload or a hand-typed bare id and returns the
// canonical voucher id.
func (s *VoucherService) Decode(payload string) (string, error) {
	log := s.log.Function("Decode")

	candidate := strings.ToUpper(strings.TrimSpace(payload))
	candidate = strings.TrimPrefix(candidate, VoucherPayloadPrefix)

	if len(candidate) != VoucherIDLength {
		return "", log.ErrorWithType(types.ErrInvalidPayload, "unrecognized voucher payload", "length", len(candidate))
	}

	raw, err := voucherEncoding.DecodeString(candidate)
	if err != nil || len(raw) != voucherNonceSize+voucherMACSize {
		return "", log.ErrorWithType(types.ErrInvalidPayload, "malformed voucher payload")
	}

	return voucherEncoding.EncodeToString(raw), nil
}

// QRCode renders the payload of voucherID as a PNG of size pixels.
func (s *VoucherService) QRCode(voucherID string, size int) ([]byte, error) {
	log := s.log.Function("QRCode")

	id, err := s.Decode(voucherID)
	if err != nil {
		return nil, err
	}

	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	png, err := qrcode.Encode(s.Encode(id), qrcode.Medium, size)
	if err != nil {
		return nil, log.Err("failed to render voucher qr code", err)
	}

	return png, nil
}

func (s *VoucherService) mac(customerID, missionID uuid.UUID, nonce []byte) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write(customerID[:])
	h.Write(missionID[:])
	h.Write(nonce)
	return h.Sum(nil)[:voucherMACSize]
}
