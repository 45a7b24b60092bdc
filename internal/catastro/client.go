// Package catastro queries the Spanish cadastral registry (Sede
// Electrónica del Catastro, OVC) and reconciles registry data against
// declared property values.
package catastro

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iuslabs/intake-cli/internal/resilience"
)

// DefaultBaseURL is the free Consulta_DNPRC endpoint. No API key required.
const DefaultBaseURL = "https://ovc.catastro.meh.es/ovcservweb/OVCSWLocalizacionRC/OVCCallejero.asmx"

// PropertyRecord is the registry's non-protected data for one inmueble.
type PropertyRecord struct {
	ReferenciaCatastral      string
	Direccion                string
	Provincia                string
	Municipio                string
	Superficie               *float64
	Uso                      *string
	AnioConstruccion         *int
	TipoBien                 *string
	DomicilioTributario      *string
	Bloque                   *string
	Escalera                 *string
	Planta                   *string
	Puerta                   *string
	CoeficienteParticipacion *float64
	NumUnidades              *int
	RawData                  map[string]any
}

// Registry queries cadastral data by referencia catastral.
type Registry interface {
	Query(ctx context.Context, referenciaCatastral string) (*PropertyRecord, error)
}

// OVCClient implements Registry against the official OVC web service.
type OVCClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOVCClient creates a registry client. A zero timeout defaults to 15s.
func NewOVCClient(baseURL string, timeout time.Duration) *OVCClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OVCClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PropertyURL returns the Sede Electrónica page for an inmueble, used as a
// fallback link when the parsed record is incomplete.
func PropertyURL(referenciaCatastral string) string {
	rc := strings.TrimSpace(referenciaCatastral)
	if rc == "" {
		return "https://www1.sedecatastro.gob.es/CYCBienInmueble/OVCBusqueda.aspx"
	}
	return "https://www1.sedecatastro.gob.es/CYCBienInmueble/OVCBusqueda.aspx?RCCompleta=" + url.QueryEscape(rc)
}

func (c *OVCClient) Query(ctx context.Context, referenciaCatastral string) (*PropertyRecord, error) {
	endpoint := fmt.Sprintf("%s/Consulta_DNPRC?Provincia=&Municipio=&RC=%s",
		c.baseURL, url.QueryEscape(referenciaCatastral))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catastro: build request")
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "catastro: query"), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "catastro: read response"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("catastro: OVC status %d: %s", resp.StatusCode, truncate(string(body), 150))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	xml := string(body)

	// The service reports its own errors inside a 200 response.
	if code := extractTag(xml, "cuerr"); code != "" && code != "0" {
		desc := extractTag(xml, "des")
		if desc == "" {
			desc = "error desconocido del Catastro"
		}
		return nil, eris.Errorf("catastro: %s", desc)
	}

	rec := parseOVC(xml, referenciaCatastral)
	zap.L().Debug("catastro query ok",
		zap.String("referencia_catastral", referenciaCatastral),
		zap.String("municipio", rec.Municipio),
	)
	return rec, nil
}

// parseOVC pulls the first inmueble out of the response. A 14-char parcel
// reference returns a list; like the registry's own viewer we take the first
// entry.
func parseOVC(xml, rc string) *PropertyRecord {
	rec := &PropertyRecord{
		ReferenciaCatastral: rc,
		Provincia:           extractTag(xml, "np"),
		Municipio:           extractTag(xml, "nm"),
	}

	// Address: road type (tv) + name (nv) + number (pnp).
	var parts []string
	for _, tag := range []string{"tv", "nv", "pnp"} {
		if v := extractTag(xml, tag); v != "" {
			parts = append(parts, v)
		}
	}
	rec.Direccion = strings.Join(parts, " ")

	// UR = urbano, RU = rústico. Rústico records usually come without
	// address or built surface.
	if cn := extractTag(xml, "cn"); cn == "UR" || cn == "RU" {
		rec.TipoBien = &cn
	}
	rec.DomicilioTributario = optTag(xml, "ldt")
	rec.Uso = optTag(xml, "luso")
	rec.Bloque = optTag(xml, "lbl")
	rec.Escalera = optTag(xml, "lnes")
	rec.Planta = optTag(xml, "lplt")
	rec.Puerta = optTag(xml, "lpta")

	if v := extractTag(xml, "sfc"); v != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil && f != 0 {
			rec.Superficie = &f
		}
	}
	if v := extractTag(xml, "ant"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n != 0 {
			rec.AnioConstruccion = &n
		}
	}
	if v := extractTag(xml, "cpt"); v != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil && f != 0 {
			rec.CoeficienteParticipacion = &f
		}
	}
	if v := extractTag(xml, "cucons"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n != 0 {
			rec.NumUnidades = &n
		}
	}

	rec.RawData = map[string]any{
		"source":     "ovc.catastro.meh.es",
		"xml_length": len(xml),
	}
	if rec.TipoBien != nil {
		rec.RawData["tipo_bien"] = *rec.TipoBien
	}
	if rec.DomicilioTributario != nil {
		rec.RawData["domicilio_tributario"] = *rec.DomicilioTributario
	}
	if rec.Bloque != nil {
		rec.RawData["bloque"] = *rec.Bloque
	}
	if rec.Escalera != nil {
		rec.RawData["escalera"] = *rec.Escalera
	}
	if rec.Planta != nil {
		rec.RawData["planta"] = *rec.Planta
	}
	if rec.Puerta != nil {
		rec.RawData["puerta"] = *rec.Puerta
	}
	if rec.CoeficienteParticipacion != nil {
		rec.RawData["coeficiente_participacion"] = *rec.CoeficienteParticipacion
	}
	if rec.NumUnidades != nil {
		rec.RawData["num_unidades_constructivas"] = *rec.NumUnidades
	}
	return rec
}

// The OVC schema is deeply nested and namespaced; we only need a handful of
// leaf tags, so a targeted scan beats modeling the whole document.
func extractTag(xml, tag string) string {
	re := regexp.MustCompile(`(?i)<` + tag + `[^>]*>([^<]*)</` + tag + `>`)
	m := re.FindStringSubmatch(xml)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func optTag(xml, tag string) *string {
	if v := extractTag(xml, tag); v != "" {
		return &v
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
