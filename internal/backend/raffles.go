package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"raffle-checkout/internal/models"
)

// ListRaffles fetches all raffles and maps the assorted historical
// field spellings onto the normalized Raffle projection. In offline
// mode a small fixed sample is served instead.
func (c *Client) ListRaffles(ctx context.Context) ([]models.Raffle, error) {
	if c.offline {
		return sampleRaffles(), nil
	}

	raw, err := c.getJSON(ctx, "list_raffles", "", c.baseURL+"/rifas")
	if err != nil {
		return nil, err
	}

	items, err := listItems(raw)
	if err != nil {
		return nil, err
	}

	raffles := make([]models.Raffle, 0, len(items))
	for _, item := range items {
		raffle, err := decodeRaffle(item)
		if err != nil {
			return nil, err
		}
		raffles = append(raffles, raffle)
	}
	return raffles, nil
}

// GetRaffle fetches a single raffle by id.
func (c *Client) GetRaffle(ctx context.Context, raffleID string) (*models.Raffle, error) {
	if c.offline {
		for _, raffle := range sampleRaffles() {
			if raffle.ID == raffleID {
				r := raffle
				return &r, nil
			}
		}
		return nil, &APIError{StatusCode: 404, Message: "raffle not found"}
	}

	raw, err := c.getJSON(ctx, "get_raffle", "", fmt.Sprintf("%s/rifas/%s", c.baseURL, raffleID))
	if err != nil {
		return nil, err
	}
	raffle, err := decodeRaffle(raw)
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

// rafflePayload covers the field aliases seen across backend versions.
type rafflePayload struct {
	ID             json.Number `json:"id"`
	Titulo         string      `json:"titulo"`
	Nome           string      `json:"nome"`
	Descricao      string      `json:"descricao"`
	Description    string      `json:"description"`
	Tipo           string      `json:"tipo"`
	ImagemURL      string      `json:"imagemUrl"`
	Imagem         string      `json:"imagem"`
	Image          string      `json:"image"`
	ImageURL       string      `json:"imageUrl"`
	PrecoPorNumero *float64    `json:"precoPorNumero"`
	ValorNumero    *float64    `json:"valorNumero"`
	QtdTotal       int         `json:"quantidadeNumeros"`
	QtdNumeros     int         `json:"qtdNumeros"`
	Vendidos       int         `json:"numerosVendidos"`
	VendidosAlias  int         `json:"vendidos"`
	Status         string      `json:"status"`
}

func decodeRaffle(raw json.RawMessage) (models.Raffle, error) {
	var p rafflePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Raffle{}, fmt.Errorf("failed to decode raffle payload: %w", err)
	}

	raffle := models.Raffle{
		ID:          p.ID.String(),
		Title:       firstNonEmpty(p.Titulo, p.Nome, "Raffle"),
		Description: firstNonEmpty(p.Descricao, p.Description),
		Type:        raffleType(p.Tipo),
		ImageURL:    firstNonEmpty(p.ImagemURL, p.Imagem, p.Image, p.ImageURL),
		Status:      raffleStatus(p.Status),
	}

	if p.PrecoPorNumero != nil {
		raffle.PricePerNumber = *p.PrecoPorNumero
	} else if p.ValorNumero != nil {
		raffle.PricePerNumber = *p.ValorNumero
	}

	raffle.TotalNumbers = p.QtdTotal
	if raffle.TotalNumbers == 0 {
		raffle.TotalNumbers = p.QtdNumeros
	}
	raffle.SoldNumbers = p.Vendidos
	if raffle.SoldNumbers == 0 {
		raffle.SoldNumbers = p.VendidosAlias
	}

	return raffle, nil
}

// raffleType maps backend raffle types onto payment types.
func raffleType(tipo string) models.PaymentType {
	switch strings.ToUpper(tipo) {
	case "GRATUITA":
		return models.PaymentTypeFree
	case "PAGA_MANUAL":
		return models.PaymentTypeManual
	case "PAGA_AUTOMATICA":
		return models.PaymentTypeAutomatic
	}
	return models.PaymentType(strings.ToUpper(tipo))
}

// raffleStatus maps backend statuses, including the retired ENCERRADA
// alias, onto the current vocabulary.
func raffleStatus(status string) string {
	switch strings.ToUpper(status) {
	case "ATIVA", "":
		return "ACTIVE"
	case "COMPLETA", "ENCERRADA":
		return "COMPLETE"
	case "CANCELADA":
		return "CANCELED"
	case "SORTEADA":
		return "DRAWN"
	}
	return strings.ToUpper(status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sampleRaffles() []models.Raffle {
	return []models.Raffle{
		{
			ID:             "sample-1",
			Title:          "Smartphone Raffle",
			Description:    "Brand new smartphone, 200 tickets",
			Type:           models.PaymentTypeAutomatic,
			PricePerNumber: 10.00,
			TotalNumbers:   200,
			SoldNumbers:    57,
			Status:         "ACTIVE",
		},
		{
			ID:             "sample-2",
			Title:          "Dinner for Two",
			Description:    "Voucher raffle with manual payment",
			Type:           models.PaymentTypeManual,
			PricePerNumber: 5.00,
			TotalNumbers:   100,
			SoldNumbers:    12,
			Status:         "ACTIVE",
		},
		{
			ID:             "sample-3",
			Title:          "Community Giveaway",
			Description:    "Free entry, one number per person",
			Type:           models.PaymentTypeFree,
			PricePerNumber: 0,
			TotalNumbers:   500,
			SoldNumbers:    321,
			Status:         "ACTIVE",
		},
	}
}
