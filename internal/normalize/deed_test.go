package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuslabs/intake-cli/internal/model"
)

func TestBuildDeed(t *testing.T) {
	ext := model.DeedExtraction{
		Causante:           cf("Juan García Pérez", 0.97),
		FechaFallecimiento: cf("2025-11-02", 0.9),
		Notario:            cf("María López", 0.88),
		Protocolo:          cf("1234/2026", 0.85),
		FechaEscritura:     cf("2026-01-20", 0.93),
	}

	deed := BuildDeed("doc-1", ext)
	assert.Equal(t, "doc-1", deed.DocumentID)
	assert.Equal(t, "Juan García Pérez", *deed.Causante)
	assert.Equal(t, "1234/2026", *deed.Protocolo)
	assert.Equal(t, 0.97, deed.ConfidenceScores["causante"])
	assert.Equal(t, 0.85, deed.ConfidenceScores["protocolo"])
	assert.Len(t, deed.ConfidenceScores, 5)
}

func TestBuildDeed_MissingFieldsStayNil(t *testing.T) {
	deed := BuildDeed("doc-1", model.DeedExtraction{Causante: cf("Juan García", 0.9)})
	assert.Nil(t, deed.Notario)
	assert.Nil(t, deed.FechaEscritura)
	assert.Zero(t, deed.ConfidenceScores["notario"])
}

func TestBuildHeirs_DropsNameless(t *testing.T) {
	pct := 50.0
	heirs := BuildHeirs("deed-1", []model.HeirExtraction{
		{Nombre: "Ana García", Rol: model.Ptr("heredero_universal"), DNI: model.Ptr(" 12345678Z "), Porcentaje: &pct},
		{Nombre: "   "},
		{Nombre: "Luis García"},
	})
	require.Len(t, heirs, 2)
	assert.Equal(t, "Ana García", heirs[0].Nombre)
	assert.Equal(t, "12345678Z", *heirs[0].DNI)
	assert.Equal(t, 50.0, *heirs[0].Porcentaje)
	assert.Equal(t, "Luis García", heirs[1].Nombre)
	assert.Nil(t, heirs[1].Rol)
}

func TestBuildProperties_CanonicalizesReferencia(t *testing.T) {
	props := BuildProperties("deed-1", []model.PropertyExtraction{
		{
			Descripcion:         "Vivienda en Madrid",
			ReferenciaCatastral: model.Ptr(" 1234567 ab1234c 0001de "),
			ValorDeclarado:      model.Ptr(150000.0),
		},
		{Descripcion: "", ReferenciaCatastral: model.Ptr("  ")},
	})
	require.Len(t, props, 2)
	assert.Equal(t, "1234567AB1234C0001DE", *props[0].ReferenciaCatastral)
	assert.Equal(t, "Vivienda en Madrid", *props[0].Descripcion)
	assert.Nil(t, props[1].Descripcion)
	assert.Nil(t, props[1].ReferenciaCatastral)
}
