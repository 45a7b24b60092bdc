package normalize

import (
	"strings"

	"github.com/iuslabs/intake-cli/internal/model"
)

// BuildDeed flattens a deed extraction into a persistable row.
func BuildDeed(documentID string, ext model.DeedExtraction) *model.InheritanceDeed {
	return &model.InheritanceDeed{
		DocumentID:         documentID,
		Causante:           ext.Causante.Value,
		FechaFallecimiento: ext.FechaFallecimiento.Value,
		Notario:            ext.Notario.Value,
		Protocolo:          ext.Protocolo.Value,
		FechaEscritura:     ext.FechaEscritura.Value,
		ConfidenceScores: map[string]float64{
			"causante":            ext.Causante.Confidence,
			"fecha_fallecimiento": ext.FechaFallecimiento.Confidence,
			"notario":             ext.Notario.Confidence,
			"protocolo":           ext.Protocolo.Confidence,
			"fecha_escritura":     ext.FechaEscritura.Confidence,
		},
	}
}

// BuildHeirs converts extracted heirs into rows under a persisted deed.
// Heirs without a name are dropped; a nameless heir row is unactionable.
func BuildHeirs(deedID string, heirs []model.HeirExtraction) []*model.Heir {
	out := make([]*model.Heir, 0, len(heirs))
	for _, h := range heirs {
		nombre := strings.TrimSpace(h.Nombre)
		if nombre == "" {
			continue
		}
		out = append(out, &model.Heir{
			DeedID:     deedID,
			Nombre:     nombre,
			Rol:        trimPtr(h.Rol),
			DNI:        trimPtr(h.DNI),
			Porcentaje: h.Porcentaje,
		})
	}
	return out
}

// BuildProperties converts extracted real-estate assets into rows under a
// persisted deed. Referencias catastrales are stored uppercased without
// spaces so the registry sync queue sees a canonical code.
func BuildProperties(deedID string, props []model.PropertyExtraction) []*model.Property {
	out := make([]*model.Property, 0, len(props))
	for _, p := range props {
		out = append(out, &model.Property{
			DeedID:              deedID,
			Descripcion:         strPtr(p.Descripcion),
			ReferenciaCatastral: canonicalRC(p.ReferenciaCatastral),
			ValorDeclarado:      p.ValorDeclarado,
		})
	}
	return out
}

func canonicalRC(rc *string) *string {
	if rc == nil {
		return nil
	}
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(*rc), " ", ""))
	if s == "" {
		return nil
	}
	return &s
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return strPtr(*s)
}
