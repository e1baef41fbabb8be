package normalize

import (
	"encoding/json"
	"testing"

	"raffle-checkout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationHistoricalShapes(t *testing.T) {
	// Three generations of the reserve endpoint, all describing the same
	// purchase. Every shape must normalize to the same canonical view.
	shapes := []struct {
		name     string
		body     string
		location string
	}{
		{
			name: "current shape",
			body: `{
				"compraId": "f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
				"rifaId": "raffle-9",
				"tituloRifa": "Rifa do Churrasco",
				"tipoRifa": "PAGA_MANUAL",
				"quantidadeNumeros": 3,
				"numeros": [1, 15, 203],
				"valorTotal": 30.00,
				"status": "PENDENTE",
				"minutosParaExpirar": 15,
				"pagamentoManual": {
					"chavePix": "seller@example.com",
					"nomeVendedor": "Seller",
					"valor": 30.00
				}
			}`,
		},
		{
			name: "legacy flat shape",
			body: `{
				"id": "f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
				"rifaId": "raffle-9",
				"titulo": "Rifa do Churrasco",
				"tipo": "MANUAL",
				"quantidade": 3,
				"numeros": [1, 15, 203],
				"valor": 30.00,
				"status": "RESERVADA",
				"minutosExpiracao": 15,
				"pagamentoManual": {
					"chave": "seller@example.com",
					"nome": "Seller",
					"valorPagar": 30.00
				}
			}`,
		},
		{
			name: "enveloped shape with Location id",
			body: `{
				"data": {"id": "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"},
				"rifa": {"id": "raffle-9", "titulo": "Rifa do Churrasco", "tipo": "PAGA_MANUAL"},
				"numeros": [1, 15, 203],
				"total": 30.00,
				"minutosParaExpirar": 15,
				"pagamentoManual": {
					"chavePix": "seller@example.com",
					"nomeVendedor": "Seller",
					"valor": 30.00
				}
			}`,
			location: "/compras/f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
		},
	}

	for _, tt := range shapes {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Reservation(json.RawMessage(tt.body), tt.location)
			require.NoError(t, err)

			assert.Equal(t, "f81d4fae-7dec-11d0-a765-00a0c91e6bf6", res.PurchaseID)
			assert.Equal(t, "raffle-9", res.RaffleID)
			assert.Equal(t, "Rifa do Churrasco", res.RaffleTitle)
			assert.Equal(t, models.PaymentTypeManual, res.PaymentType)
			assert.False(t, res.TypeInferred)
			assert.Equal(t, 3, res.RequestedNumberCount)
			assert.Equal(t, []int{1, 15, 203}, res.AssignedNumbers)
			assert.Equal(t, 30.00, res.TotalAmount)
			assert.Equal(t, models.StatusPending, res.Status)

			require.NotNil(t, res.ManualInstructions)
			assert.Equal(t, "seller@example.com", res.ManualInstructions.PayeeKey)
			assert.Equal(t, "Seller", res.ManualInstructions.PayeeName)
			assert.Equal(t, 30.00, res.ManualInstructions.Amount)
			assert.Nil(t, res.AutomaticPayment)
		})
	}
}

func TestReservationLocationHeaderID(t *testing.T) {
	res, err := Reservation(
		json.RawMessage(`{"status": "PENDENTE", "valorTotal": 10.0, "tipoRifa": "PAGA_AUTOMATICA"}`),
		"https://api.example.com/compras/f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
	)
	require.NoError(t, err)
	assert.Equal(t, "f81d4fae-7dec-11d0-a765-00a0c91e6bf6", res.PurchaseID)
}

func TestReservationNoIdentifier(t *testing.T) {
	_, err := Reservation(json.RawMessage(`{"status": "PENDENTE"}`), "")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	// A non-UUID Location tail must not be trusted as an id.
	_, err = Reservation(json.RawMessage(`{"status": "PENDENTE"}`), "/compras/123")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = Reservation(json.RawMessage(`[1, 2, 3]`), "")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestReservationTypeInference(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     models.PaymentType
		inferred bool
	}{
		{
			name: "explicit type is never inferred",
			body: `{"compraId": "c-1", "tipoRifa": "GRATUITA", "valorTotal": 0}`,
			want: models.PaymentTypeFree,
		},
		{
			name:     "absent type with zero total is free",
			body:     `{"compraId": "c-2", "valorTotal": 0}`,
			want:     models.PaymentTypeFree,
			inferred: true,
		},
		{
			name:     "absent type with positive total defaults to automatic",
			body:     `{"compraId": "c-3", "valorTotal": 25.5}`,
			want:     models.PaymentTypeAutomatic,
			inferred: true,
		},
		{
			name:     "absent type with manual block leans manual",
			body:     `{"compraId": "c-4", "valorTotal": 25.5, "pagamentoManual": {"chavePix": "k"}}`,
			want:     models.PaymentTypeManual,
			inferred: true,
		},
		{
			name: "unknown explicit type is preserved",
			body: `{"compraId": "c-5", "tipoRifa": "SORTEIO_ESPECIAL", "valorTotal": 5}`,
			want: models.PaymentType("SORTEIO_ESPECIAL"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Reservation(json.RawMessage(tt.body), "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.PaymentType)
			assert.Equal(t, tt.inferred, res.TypeInferred)
		})
	}
}

func TestReservationSinglePaymentBlock(t *testing.T) {
	// Both blocks present: the declared type decides which survives.
	body := `{
		"compraId": "c-9",
		"tipoRifa": "PAGA_AUTOMATICA",
		"valorTotal": 10,
		"pagamentoManual": {"chavePix": "k"},
		"pagamento": {"id": "pix-1", "status": "AGUARDANDO", "qrCode": "img", "qrCodePayload": "text"}
	}`
	res, err := Reservation(json.RawMessage(body), "")
	require.NoError(t, err)
	assert.Nil(t, res.ManualInstructions)
	require.NotNil(t, res.AutomaticPayment)
	assert.Equal(t, "pix-1", res.AutomaticPayment.PaymentID)
}

func TestPaymentShapeReconciliation(t *testing.T) {
	t.Run("new shape", func(t *testing.T) {
		payment, err := Payment(json.RawMessage(`{
			"id": "pix-1",
			"status": "AGUARDANDO",
			"qrCode": "data:image/png;base64,AAAA",
			"qrCodePayload": "00020126pixcopypaste"
		}`))
		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,AAAA", payment.QRImageData)
		assert.Equal(t, "00020126pixcopypaste", payment.QRPayloadText)
		assert.Equal(t, models.PixAwaiting, payment.Status)
	})

	t.Run("old shape", func(t *testing.T) {
		payment, err := Payment(json.RawMessage(`{
			"txid": "pix-1",
			"status": "PENDENTE",
			"qrCode": "00020126pixcopypaste",
			"qrCodeBase64": "AAAA"
		}`))
		require.NoError(t, err)
		assert.Equal(t, "AAAA", payment.QRImageData)
		assert.Equal(t, "00020126pixcopypaste", payment.QRPayloadText)
		assert.Equal(t, models.PixAwaiting, payment.Status)
	})

	t.Run("approved status", func(t *testing.T) {
		payment, err := Payment(json.RawMessage(`{"id": "pix-1", "status": "APROVADO"}`))
		require.NoError(t, err)
		assert.Equal(t, models.PixApproved, payment.Status)
	})

	t.Run("empty body rejected", func(t *testing.T) {
		_, err := Payment(json.RawMessage(`{}`))
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestFallbackDetection(t *testing.T) {
	t.Run("fallback shape", func(t *testing.T) {
		fb, ok := Fallback(json.RawMessage(`{
			"erro": "GATEWAY_INDISPONIVEL",
			"mensagem": "Pague manualmente",
			"chavePix": "seller@example.com",
			"nomeVendedor": "Seller",
			"valorPagar": 30.00
		}`), "c-1")
		require.True(t, ok)
		assert.Equal(t, "c-1", fb.PurchaseID)
		assert.Equal(t, "GATEWAY_INDISPONIVEL", fb.Reason)
		assert.Equal(t, "seller@example.com", fb.PayeeKey)
		assert.Equal(t, 30.00, fb.Amount)
	})

	t.Run("regular payment is not a fallback", func(t *testing.T) {
		_, ok := Fallback(json.RawMessage(`{"id": "pix-1", "status": "AGUARDANDO"}`), "c-1")
		assert.False(t, ok)
	})

	t.Run("body purchase id wins", func(t *testing.T) {
		fb, ok := Fallback(json.RawMessage(`{"erro": "X", "compraId": "c-2"}`), "c-1")
		require.True(t, ok)
		assert.Equal(t, "c-2", fb.PurchaseID)
	})
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, models.StatusPending, Status("PENDENTE"))
	assert.Equal(t, models.StatusPending, Status("pendente"))
	assert.Equal(t, models.StatusPending, Status(""))
	assert.Equal(t, models.StatusConfirmed, Status("CONFIRMADA"))
	assert.Equal(t, models.StatusPaid, Status("PAGO"))
	assert.Equal(t, models.StatusExpired, Status("EXPIRADA"))
	assert.Equal(t, models.StatusCanceled, Status("CANCELADO"))
	assert.Equal(t, models.StatusPending, Status("SOMETHING_NEW"))
}

func TestPixStatusMapping(t *testing.T) {
	assert.Equal(t, models.PixAwaiting, PixStatus("AGUARDANDO"))
	assert.Equal(t, models.PixAwaiting, PixStatus(""))
	assert.Equal(t, models.PixApproved, PixStatus("APROVADO"))
	assert.Equal(t, models.PixRefused, PixStatus("RECUSADO"))
	assert.Equal(t, models.PixExpired, PixStatus("EXPIRADO"))
}
