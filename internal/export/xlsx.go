package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/iuslabs/intake-cli/internal/model"
)

// WriteXLSX writes the payload as a workbook with one sheet per record kind.
func WriteXLSX(data *Data, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create dir")
	}

	f := xlsx.NewFile()
	if err := writeFacturas(f, data.Facturas); err != nil {
		return err
	}
	if err := writeItems(f, data.Facturas); err != nil {
		return err
	}
	if err := writeEscrituras(f, data.Escrituras); err != nil {
		return err
	}
	if err := writeHerederos(f, data.Escrituras); err != nil {
		return err
	}
	if err := writeInmuebles(f, data.Escrituras); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func writeFacturas(f *xlsx.File, invoices []model.Invoice) error {
	sheet, err := f.AddSheet("Facturas")
	if err != nil {
		return eris.Wrap(err, "export: add sheet Facturas")
	}
	addHeader(sheet, "ID", "Documento", "Emisor", "CIF", "Número", "Fecha",
		"Base imponible", "Total", "Concepto", "Página", "Validada")
	for _, inv := range invoices {
		row := sheet.AddRow()
		row.AddCell().Value = inv.ID
		row.AddCell().Value = inv.DocumentID
		setStr(row, inv.Emisor)
		setStr(row, inv.CIF)
		setStr(row, inv.NumeroFactura)
		setStr(row, inv.Fecha)
		setFloat(row, inv.BaseImponible)
		setFloat(row, inv.Total)
		setStr(row, inv.Concepto)
		setInt(row, inv.PageNumber)
		row.AddCell().SetBool(inv.Validated)
	}
	return nil
}

func writeItems(f *xlsx.File, invoices []model.Invoice) error {
	sheet, err := f.AddSheet("ItemsFactura")
	if err != nil {
		return eris.Wrap(err, "export: add sheet ItemsFactura")
	}
	addHeader(sheet, "FacturaID", "Número factura", "Descripción", "Cantidad",
		"Unidad", "Precio unitario", "Importe", "Confianza mínima")
	for _, inv := range invoices {
		for _, it := range inv.Items {
			row := sheet.AddRow()
			row.AddCell().Value = inv.ID
			setStr(row, inv.NumeroFactura)
			setStr(row, it.Descripcion.Value)
			setFloat(row, it.Cantidad.Value)
			setStr(row, it.Unidad.Value)
			setFloat(row, it.PrecioUnitario.Value)
			setFloat(row, it.Importe.Value)
			row.AddCell().SetFloat(it.RowConfidence())
		}
	}
	return nil
}

func writeEscrituras(f *xlsx.File, deeds []DeedExport) error {
	sheet, err := f.AddSheet("Escrituras")
	if err != nil {
		return eris.Wrap(err, "export: add sheet Escrituras")
	}
	addHeader(sheet, "ID", "Documento", "Causante", "Fecha fallecimiento",
		"Notario", "Protocolo", "Fecha escritura", "Validada")
	for _, d := range deeds {
		row := sheet.AddRow()
		row.AddCell().Value = d.ID
		row.AddCell().Value = d.DocumentID
		setStr(row, d.Causante)
		setStr(row, d.FechaFallecimiento)
		setStr(row, d.Notario)
		setStr(row, d.Protocolo)
		setStr(row, d.FechaEscritura)
		row.AddCell().SetBool(d.Validated)
	}
	return nil
}

func writeHerederos(f *xlsx.File, deeds []DeedExport) error {
	sheet, err := f.AddSheet("Herederos")
	if err != nil {
		return eris.Wrap(err, "export: add sheet Herederos")
	}
	addHeader(sheet, "EscrituraID", "Causante", "Nombre", "Rol", "DNI", "Porcentaje")
	for _, d := range deeds {
		for _, h := range d.Herederos {
			row := sheet.AddRow()
			row.AddCell().Value = d.ID
			setStr(row, d.Causante)
			row.AddCell().Value = h.Nombre
			setStr(row, h.Rol)
			setStr(row, h.DNI)
			setFloat(row, h.Porcentaje)
		}
	}
	return nil
}

func writeInmuebles(f *xlsx.File, deeds []DeedExport) error {
	sheet, err := f.AddSheet("Inmuebles")
	if err != nil {
		return eris.Wrap(err, "export: add sheet Inmuebles")
	}
	addHeader(sheet, "EscrituraID", "Descripción", "Referencia catastral",
		"Valor declarado", "Valor referencia", "Desviación fiscal (%)",
		"Alerta fiscal", "Catastro consultado")
	for _, d := range deeds {
		for _, p := range d.Inmuebles {
			row := sheet.AddRow()
			row.AddCell().Value = d.ID
			setStr(row, p.Descripcion)
			setStr(row, p.ReferenciaCatastral)
			setFloat(row, p.ValorDeclarado)
			setFloat(row, p.ValorReferencia)
			setFloat(row, p.DesviacionFiscal)
			row.AddCell().SetBool(p.AlertaFiscal)
			row.AddCell().SetBool(p.CatastroConsultado)
		}
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, title := range titles {
		row.AddCell().Value = title
	}
}

func setStr(row *xlsx.Row, v *string) {
	cell := row.AddCell()
	if v != nil {
		cell.Value = *v
	}
}

func setFloat(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}

func setInt(row *xlsx.Row, v *int) {
	cell := row.AddCell()
	if v != nil {
		cell.SetInt(*v)
	}
}
