package catastro

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/model"
	"github.com/iuslabs/intake-cli/internal/resilience"
	"github.com/iuslabs/intake-cli/internal/store"
)

// minReferenceLength is the shortest referencia catastral the registry
// accepts (a 14-char parcel reference; full references are 20 chars).
const minReferenceLength = 14

// alertThresholdPct: the reference value exceeding the declared value by
// more than this percentage raises alerta_fiscal.
const alertThresholdPct = 20.0

// Reconciler queries the registry for a property and persists the merged
// cadastral snapshot with the fiscal deviation verdict.
type Reconciler struct {
	registry Registry
	store    store.Store
	now      func() time.Time
}

// NewReconciler wires a registry client to the persistence layer.
func NewReconciler(registry Registry, st store.Store) *Reconciler {
	return &Reconciler{registry: registry, store: st, now: time.Now}
}

// Reconcile runs a single property through registry lookup, value estimation
// and deviation scoring, then applies the whole snapshot atomically. Invalid
// references are rejected before any network call; the property row is left
// untouched on any failure.
func (r *Reconciler) Reconcile(ctx context.Context, propertyID string) (*model.Property, error) {
	prop, err := r.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	if prop.ReferenciaCatastral == nil || len(*prop.ReferenciaCatastral) < minReferenceLength {
		return nil, resilience.NewValidationError("referencia catastral inválida (mínimo 14 caracteres)")
	}

	rec, err := r.registry.Query(ctx, *prop.ReferenciaCatastral)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile property %s", propertyID)
	}

	valorReferencia := EstimateReferenceValue(rec, r.now().Year())

	upd := model.CatastroUpdate{
		Provincia:        strPtrOrNil(rec.Provincia),
		Municipio:        strPtrOrNil(rec.Municipio),
		Direccion:        strPtrOrNil(rec.Direccion),
		Superficie:       rec.Superficie,
		Uso:              rec.Uso,
		AnioConstruccion: rec.AnioConstruccion,
		ValorReferencia:  valorReferencia,
	}

	rawData := make(map[string]any, len(rec.RawData)+1)
	for k, v := range rec.RawData {
		rawData[k] = v
	}

	if prop.ValorDeclarado != nil && *prop.ValorDeclarado > 0 && valorReferencia != nil {
		raw := (*valorReferencia - *prop.ValorDeclarado) / *prop.ValorDeclarado * 100
		clamped := clampDeviation(raw)
		upd.DesviacionFiscal = &clamped
		upd.AlertaFiscal = raw > alertThresholdPct
		// The column is numeric(5,2); the unclamped value is kept for audit.
		rawData["desviacion_fiscal_real"] = raw
	} else {
		rawData["desviacion_fiscal_real"] = nil
	}
	upd.RawData = rawData

	if err := r.store.UpdatePropertyCatastro(ctx, propertyID, upd); err != nil {
		return nil, err
	}

	zap.L().Info("property reconciled",
		zap.String("property_id", propertyID),
		zap.String("referencia_catastral", *prop.ReferenciaCatastral),
		zap.Bool("alerta_fiscal", upd.AlertaFiscal),
	)

	return r.store.GetProperty(ctx, propertyID)
}

// clampDeviation fits a percentage into the numeric(5,2) storage range by
// truncating toward zero, never rounding across the column boundary.
func clampDeviation(raw float64) float64 {
	if raw >= 999.99 {
		return 999.99
	}
	if raw <= -999.99 {
		return -999.99
	}
	return math.Trunc(raw*100) / 100
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
