package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/pkg/anthropic"
)

func TestExtractText(t *testing.T) {
	resp := &anthropic.MessageResponse{Content: []anthropic.ContentBlock{
		{Type: "text", Text: "hola "},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "mundo"},
	}}
	assert.Equal(t, "hola mundo", extractText(resp))
}

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced no lang", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", "Aquí está el resultado:\n{\"a\": 1}\nEspero que sirva.", `{"a": 1}`},
		{"no json", "no hay nada", "no hay nada"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cleanJSON(tc.in))
		})
	}
}

func TestParseClassification(t *testing.T) {
	got := parseClassification(`{"document_type": "factura", "confidence": 0.93, "reasoning": "cabecera con CIF y total"}`)
	assert.Equal(t, model.DocTypeFactura, got.DocumentType)
	assert.Equal(t, 0.93, got.Confidence)
	assert.Equal(t, "cabecera con CIF y total", got.Reasoning)
}

func TestParseClassification_FencedAndUppercase(t *testing.T) {
	got := parseClassification("```json\n{\"document_type\": \"Escritura_Herencia\", \"confidence\": 1.7}\n```")
	assert.Equal(t, model.DocTypeEscrituraHerencia, got.DocumentType)
	assert.Equal(t, 1.0, got.Confidence, "confidence clamps to [0,1]")
}

func TestParseClassification_UnknownTypeFallsBackToOtro(t *testing.T) {
	got := parseClassification(`{"document_type": "nomina", "confidence": 0.9}`)
	assert.Equal(t, model.DocTypeOtro, got.DocumentType)
	assert.Zero(t, got.Confidence)
}

func TestParseClassification_GarbageFallsBackToOtro(t *testing.T) {
	got := parseClassification("lo siento, no puedo clasificar este documento")
	assert.Equal(t, model.DocTypeOtro, got.DocumentType)
	assert.Zero(t, got.Confidence)
}

func TestParseInvoices(t *testing.T) {
	text := `{"facturas": [{
		"emisor": {"value": "Gasolinera Sol SL", "confidence": 0.95},
		"cif": {"value": "B12345678", "confidence": 0.9},
		"numero_factura": {"value": "F-001", "confidence": 0.99},
		"fecha": {"value": "2026-03-15", "confidence": 0.97},
		"base_imponible": {"value": 100.0, "confidence": 0.92},
		"tipos_iva": [{"porcentaje": 21, "importe": 21}],
		"total": {"value": 121.0, "confidence": 0.96},
		"concepto": {"value": "Combustible", "confidence": 0.8},
		"items": [{
			"descripcion": {"value": "Gasóleo A", "confidence": 0.9},
			"cantidad": {"value": 40, "confidence": 0.85},
			"unidad": {"value": "L", "confidence": 0.7},
			"precio_unitario": {"value": 1.5, "confidence": 0.9},
			"importe": {"value": 60, "confidence": 0.95}
		}],
		"page_number": 2
	}]}`

	got, err := parseInvoices(text)
	require.NoError(t, err)
	require.Len(t, got, 1)

	inv := got[0]
	assert.Equal(t, "Gasolinera Sol SL", *inv.Emisor.Value)
	assert.Equal(t, 0.95, inv.Emisor.Confidence)
	assert.Equal(t, 121.0, *inv.Total.Value)
	require.Len(t, inv.TiposIVA, 1)
	assert.Equal(t, 21.0, inv.TiposIVA[0].Porcentaje)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Gasóleo A", *inv.Items[0].Descripcion.Value)
	require.NotNil(t, inv.PageNumber)
	assert.Equal(t, 2, *inv.PageNumber)
}

func TestParseInvoices_TolerantShapes(t *testing.T) {
	// Bare scalars, Spanish-formatted number strings and null page_number
	// all decode without error.
	text := `{"facturas": [{
		"emisor": "Talleres Paco",
		"total": {"value": "1.234,56", "confidence": 0.7},
		"base_imponible": {"value": null, "confidence": 0},
		"page_number": null
	}]}`

	got, err := parseInvoices(text)
	require.NoError(t, err)
	require.Len(t, got, 1)

	inv := got[0]
	require.NotNil(t, inv.Emisor.Value)
	assert.Equal(t, "Talleres Paco", *inv.Emisor.Value)
	assert.Zero(t, inv.Emisor.Confidence, "bare scalars carry no confidence")
	require.NotNil(t, inv.Total.Value)
	assert.Equal(t, 1234.56, *inv.Total.Value)
	assert.Nil(t, inv.BaseImponible.Value)
	assert.Nil(t, inv.PageNumber)
	assert.Empty(t, inv.Items)
}

func TestParseInvoices_EmptyList(t *testing.T) {
	got, err := parseInvoices(`{"facturas": []}`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseInvoices_Garbage(t *testing.T) {
	_, err := parseInvoices("esto no es JSON")
	require.Error(t, err)
}

func TestParseDeed(t *testing.T) {
	text := `{
		"causante": {"value": "Juan García Pérez", "confidence": 0.97},
		"fecha_fallecimiento": {"value": "2025-11-02", "confidence": 0.9},
		"notario": {"value": "María López", "confidence": 0.88},
		"protocolo": {"value": "1234/2026", "confidence": 0.85},
		"fecha_escritura": {"value": "2026-01-20", "confidence": 0.93},
		"herederos": [
			{"nombre": "Ana García", "rol": "heredero_universal", "dni": "11111111A", "porcentaje": 50},
			{"nombre": "", "rol": null, "dni": null, "porcentaje": null}
		],
		"bienes_inmuebles": [
			{"descripcion": "Vivienda en Madrid", "referencia_catastral": "1234567AB1234C0001DE", "valor_declarado": "150.000,00"}
		]
	}`

	got, err := parseDeed(text)
	require.NoError(t, err)
	assert.Equal(t, "Juan García Pérez", *got.Causante.Value)
	assert.Equal(t, 0.97, got.Causante.Confidence)

	require.Len(t, got.Herederos, 1, "nameless heirs are dropped")
	assert.Equal(t, "Ana García", got.Herederos[0].Nombre)
	assert.Equal(t, 50.0, *got.Herederos[0].Porcentaje)

	require.Len(t, got.BienesInmuebles, 1)
	assert.Equal(t, "1234567AB1234C0001DE", *got.BienesInmuebles[0].ReferenciaCatastral)
	assert.Equal(t, 150000.0, *got.BienesInmuebles[0].ValorDeclarado)
}

func TestMediaTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf",
		mediaTypeFor(&model.Document{FileName: "escritura.pdf"}))
	assert.Equal(t, "image/jpeg",
		mediaTypeFor(&model.Document{FileName: "ticket.JPG"}))
	assert.Equal(t, "image/png",
		mediaTypeFor(&model.Document{FileName: "dni.png"}))
	assert.Equal(t, "image/webp",
		mediaTypeFor(&model.Document{FileName: "scan.webp", FileType: model.Ptr("")}))
	// An explicit stored type wins over the extension.
	assert.Equal(t, "application/pdf",
		mediaTypeFor(&model.Document{FileName: "scan.png", FileType: model.Ptr("application/pdf")}))
}
