// Package normalize maps the assorted payload shapes the raffle backend
// has produced over time onto one canonical reservation model. Every
// logical field is resolved through an ordered candidate-key table; the
// first present, non-empty value wins. The package is pure: no I/O, no
// side effects.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"raffle-checkout/internal/models"
)

// ErrMalformedResponse is returned when no usable purchase identifier
// can be located in either the body or the Location header. The
// normalizer fails loudly rather than guess.
var ErrMalformedResponse = errors.New("malformed backend response: no purchase identifier")

// Candidate key paths per canonical field. Order is contract: earlier
// spellings are newer backend versions.
var (
	purchaseIDKeys = []string{"compraId", "id", "data.id"}
	raffleIDKeys   = []string{"rifaId", "rifa.id"}
	titleKeys      = []string{"tituloRifa", "titulo", "rifa.titulo"}
	typeKeys       = []string{"tipoRifa", "tipo", "rifa.tipo"}
	quantityKeys   = []string{"quantidadeNumeros", "quantidade"}
	numbersKeys    = []string{"numeros", "numbers"}
	totalKeys      = []string{"valorTotal", "valor", "total"}
	statusKeys     = []string{"status"}
	expiresKeys    = []string{"dataExpiracao", "expiraEm"}
	minutesKeys    = []string{"minutosParaExpirar", "minutosExpiracao"}
)

var trailingIDPattern = regexp.MustCompile(`[0-9a-fA-F-]{36}$`)

// Reservation builds the canonical reservation from an arbitrary
// backend body plus the Location header of the originating response.
func Reservation(raw json.RawMessage, location string) (*models.Reservation, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w (body is not a JSON object)", ErrMalformedResponse)
	}

	purchaseID := firstString(doc, purchaseIDKeys)
	if purchaseID == "" {
		purchaseID = locationID(location)
	}
	if purchaseID == "" {
		return nil, ErrMalformedResponse
	}

	res := &models.Reservation{
		PurchaseID:      purchaseID,
		RaffleID:        firstString(doc, raffleIDKeys),
		RaffleTitle:     firstString(doc, titleKeys),
		AssignedNumbers: firstIntSlice(doc, numbersKeys),
		TotalAmount:     firstFloat(doc, totalKeys),
		Status:          Status(firstString(doc, statusKeys)),
	}

	res.RequestedNumberCount = firstInt(doc, quantityKeys)
	if res.RequestedNumberCount == 0 {
		res.RequestedNumberCount = len(res.AssignedNumbers)
	}

	if ts := parseTime(firstString(doc, expiresKeys)); ts != nil {
		res.ExpiresAt = ts
	}
	res.MinutesRemaining = firstInt(doc, minutesKeys)

	if manual, ok := lookup(doc, "pagamentoManual"); ok {
		res.ManualInstructions = manualInstructions(manual)
	}
	if payment, ok := lookup(doc, "pagamento"); ok {
		res.AutomaticPayment = automaticPayment(payment)
	}

	res.PaymentType, res.TypeInferred = paymentType(firstString(doc, typeKeys), res)

	// Exactly one payment block may survive, matching the type.
	switch res.PaymentType {
	case models.PaymentTypeFree:
		res.ManualInstructions = nil
		res.AutomaticPayment = nil
	case models.PaymentTypeManual:
		res.AutomaticPayment = nil
	case models.PaymentTypeAutomatic:
		res.ManualInstructions = nil
	}

	return res, nil
}

// Payment normalizes a bare PIX payment payload, as returned by the
// payment-status poll endpoint.
func Payment(raw json.RawMessage) (*models.AutomaticPayment, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w (payment body is not a JSON object)", ErrMalformedResponse)
	}
	payment := automaticPayment(doc)
	if payment == nil || payment.PaymentID == "" && payment.Status == "" {
		return nil, fmt.Errorf("%w (payment body carries no id or status)", ErrMalformedResponse)
	}
	return payment, nil
}

// Fallback detects the degraded-gateway body shape: an `erro` marker
// alongside manual-payment data. Returns false for regular payloads.
func Fallback(raw json.RawMessage, purchaseID string) (*models.FallbackPayment, bool) {
	doc, err := decode(raw)
	if err != nil {
		return nil, false
	}
	reason := firstString(doc, []string{"erro"})
	if reason == "" {
		return nil, false
	}

	fb := &models.FallbackPayment{
		PurchaseID: firstString(doc, []string{"compraId"}),
		Reason:     reason,
		Message:    firstString(doc, []string{"mensagem"}),
		PayeeKey:   firstString(doc, []string{"chavePix"}),
		PayeeName:  firstString(doc, []string{"nomeVendedor"}),
		Amount:     firstFloat(doc, []string{"valorPagar", "valor"}),
		UploadURL:  firstString(doc, []string{"urlUploadComprovante"}),
	}
	if fb.PurchaseID == "" {
		fb.PurchaseID = purchaseID
	}
	return fb, true
}

// Status maps backend reservation statuses onto the canonical set.
// Unrecognized or absent values default to PENDING: a reservation
// projection always starts life pending.
func Status(status string) string {
	switch strings.ToUpper(status) {
	case "PENDENTE", "RESERVADA", "PENDING", "":
		return models.StatusPending
	case "CONFIRMADO", "CONFIRMADA", "CONFIRMED":
		return models.StatusConfirmed
	case "PAGO", "PAGA", "PAID":
		return models.StatusPaid
	case "EXPIRADO", "EXPIRADA", "EXPIRED":
		return models.StatusExpired
	case "CANCELADO", "CANCELADA", "CANCELED", "CANCELLED":
		return models.StatusCanceled
	}
	return models.StatusPending
}

// PixStatus maps gateway payment statuses onto the canonical set.
func PixStatus(status string) string {
	switch strings.ToUpper(status) {
	case "AGUARDANDO", "AWAITING", "PENDING", "PENDENTE", "":
		return models.PixAwaiting
	case "APROVADO", "APPROVED", "PAGO":
		return models.PixApproved
	case "RECUSADO", "REFUSED", "REJECTED":
		return models.PixRefused
	case "EXPIRADO", "EXPIRED":
		return models.PixExpired
	}
	return models.PixAwaiting
}

// paymentType resolves the payment type, inferring one when the backend
// omitted it: zero total means FREE, anything else defaults to
// AUTOMATIC. The default is a policy guess carried over from the
// original contract; TypeInferred lets callers tell it apart from an
// explicit value.
func paymentType(tipo string, res *models.Reservation) (models.PaymentType, bool) {
	switch strings.ToUpper(tipo) {
	case "GRATUITA", "FREE":
		return models.PaymentTypeFree, false
	case "PAGA_MANUAL", "MANUAL":
		return models.PaymentTypeManual, false
	case "PAGA_AUTOMATICA", "AUTOMATIC", "AUTOMATICA":
		return models.PaymentTypeAutomatic, false
	case "":
		if res.TotalAmount == 0 {
			return models.PaymentTypeFree, true
		}
		if res.ManualInstructions != nil && res.AutomaticPayment == nil {
			return models.PaymentTypeManual, true
		}
		return models.PaymentTypeAutomatic, true
	}
	return models.PaymentType(strings.ToUpper(tipo)), false
}

func manualInstructions(doc map[string]interface{}) *models.ManualInstructions {
	return &models.ManualInstructions{
		PayeeKey:   firstString(doc, []string{"chavePix", "chave"}),
		PayeeName:  firstString(doc, []string{"nomeVendedor", "nome"}),
		PayeeEmail: firstString(doc, []string{"emailVendedor", "email"}),
		Amount:     firstFloat(doc, []string{"valor", "valorPagar"}),
		Message:    firstString(doc, []string{"mensagem"}),
	}
}

// automaticPayment reconciles the two historical PIX shapes. The newer
// one carries {qrCode: <image>, qrCodePayload: <text>}; the older one
// {qrCode: <text>, qrCodeBase64: <image>}. The presence of qrCodeBase64
// decides which reading applies.
func automaticPayment(doc map[string]interface{}) *models.AutomaticPayment {
	payment := &models.AutomaticPayment{
		PaymentID: firstString(doc, []string{"id", "txid"}),
		Status:    PixStatus(firstString(doc, []string{"status"})),
	}

	qrCode := firstString(doc, []string{"qrCode"})
	qrBase64 := firstString(doc, []string{"qrCodeBase64"})
	qrPayload := firstString(doc, []string{"qrCodePayload"})

	if qrBase64 != "" {
		payment.QRImageData = qrBase64
		payment.QRPayloadText = qrCode
	} else {
		payment.QRImageData = qrCode
		payment.QRPayloadText = qrPayload
	}

	if ts := parseTime(firstString(doc, []string{"dataExpiracao"})); ts != nil {
		payment.ExpiresAt = ts
	}
	return payment
}

// locationID extracts a purchase id from the trailing segment of a
// Location header. Only UUID-shaped tails are trusted.
func locationID(location string) string {
	if location == "" {
		return ""
	}
	if match := trailingIDPattern.FindString(location); match != "" {
		return match
	}
	return ""
}

func decode(raw json.RawMessage) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// lookup resolves a dotted candidate path against a decoded document.
func lookup(doc map[string]interface{}, path string) (map[string]interface{}, bool) {
	value, ok := lookupValue(doc, path)
	if !ok {
		return nil, false
	}
	nested, ok := value.(map[string]interface{})
	return nested, ok
}

func lookupValue(doc map[string]interface{}, path string) (interface{}, bool) {
	current := interface{}(doc)
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func firstString(doc map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if value, ok := lookupValue(doc, key); ok {
			switch v := value.(type) {
			case string:
				if v != "" {
					return v
				}
			case json.Number:
				return v.String()
			}
		}
	}
	return ""
}

func firstFloat(doc map[string]interface{}, keys []string) float64 {
	for _, key := range keys {
		if value, ok := lookupValue(doc, key); ok {
			if num, ok := value.(json.Number); ok {
				if f, err := num.Float64(); err == nil {
					return f
				}
			}
		}
	}
	return 0
}

func firstInt(doc map[string]interface{}, keys []string) int {
	for _, key := range keys {
		if value, ok := lookupValue(doc, key); ok {
			if num, ok := value.(json.Number); ok {
				if n, err := num.Int64(); err == nil {
					return int(n)
				}
			}
		}
	}
	return 0
}

func firstIntSlice(doc map[string]interface{}, keys []string) []int {
	for _, key := range keys {
		value, ok := lookupValue(doc, key)
		if !ok {
			continue
		}
		items, ok := value.([]interface{})
		if !ok {
			continue
		}
		nums := make([]int, 0, len(items))
		for _, item := range items {
			if num, ok := item.(json.Number); ok {
				if n, err := num.Int64(); err == nil {
					nums = append(nums, int(n))
				}
			}
		}
		return nums
	}
	return nil
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}
