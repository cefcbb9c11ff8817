package acumulus

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

// ── Constantes del servicio ───────────────────────────────────────────────────

const (
	// DefaultBaseURL endpoint estable del API Acumulus.
	DefaultBaseURL = "https://api.sielsystems.nl/acumulus/stable/"

	invoiceAddPath   = "invoices/invoice_add.php"
	conceptInfoPath  = "invoices/concept_info.php"
	entryInfoPath    = "entry/entry_info.php"
	deleteStatusPath = "entry/entry_deletestatus_set.php"

	// Códigos de estado del API: 0 éxito, 1 errores, 2 éxito con warnings, 3 excepción.
	apiStatusSuccess   = 0
	apiStatusErrors    = 1
	apiStatusWarnings  = 2
	apiStatusException = 3
)

// Config credenciales de contrato y endpoint del API.
type Config struct {
	BaseURL      string // vacío = DefaultBaseURL
	ContractCode string
	UserName     string
	Password     string
}

// Client implementa ApiClient contra el API XML de Acumulus.
// Cada llamada es un POST síncrono; el body de la petición se construye con
// etree y la respuesta se parsea con encoding/xml.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ ApiClient = (*Client)(nil)

// NewClient construye el cliente con un timeout de red generoso (60 s):
// el API puede tardar varios segundos por llamada.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// InvoiceAdd envía el documento de factura. Un rechazo del servicio llega en
// Messages; solo los fallos de transporte se devuelven como error.
func (c *Client) InvoiceAdd(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*InvoiceAddResult, error) {
	if inv == nil {
		return nil, fmt.Errorf("acumulus: invoice nil para %s", source.Label())
	}
	doc, root := c.newEnvelope()
	writeInvoicePayload(root, inv, source)

	resp, err := c.post(ctx, invoiceAddPath, doc)
	if err != nil {
		return nil, err
	}

	out := &InvoiceAddResult{Messages: resp.messages()}
	if resp.Invoice != nil {
		out.EntryID = resp.Invoice.EntryID
		out.Token = resp.Invoice.Token
		out.ConceptID = resp.Invoice.ConceptID
	}
	return out, nil
}

// SetDeleteStatus marca o desmarca un entry como borrado.
func (c *Client) SetDeleteStatus(ctx context.Context, entryID int, status EntryDeleteStatus) (*DeleteStatusResult, error) {
	doc, root := c.newEnvelope()
	e := root.CreateElement("entry")
	e.CreateElement("entryid").SetText(strconv.Itoa(entryID))
	e.CreateElement("entrydeletedstatus").SetText(strconv.Itoa(int(status)))

	resp, err := c.post(ctx, deleteStatusPath, doc)
	if err != nil {
		return nil, err
	}

	out := &DeleteStatusResult{EntryID: entryID, Messages: resp.messages()}
	if resp.Entry != nil {
		out.EntryID = resp.Entry.EntryID
		out.Deleted = strings.TrimSpace(resp.Entry.Deleted) != ""
	}
	return out, nil
}

// GetEntry consulta el estado actual de un entry real.
func (c *Client) GetEntry(ctx context.Context, entryID int, token string) (*EntryInfo, error) {
	doc, root := c.newEnvelope()
	e := root.CreateElement("entry")
	e.CreateElement("entryid").SetText(strconv.Itoa(entryID))
	if token != "" {
		e.CreateElement("token").SetText(token)
	}

	resp, err := c.post(ctx, entryInfoPath, doc)
	if err != nil {
		return nil, err
	}

	out := &EntryInfo{EntryID: entryID, Messages: resp.messages()}
	if resp.Entry != nil {
		p := resp.Entry
		out.EntryID = p.EntryID
		out.Token = p.Token
		out.InvoiceNumber = p.InvoiceNumber
		out.EntryDate = p.EntryDate
		out.Deleted = strings.TrimSpace(p.Deleted) != ""
		out.PaymentStatus = p.PaymentStatus
		out.PaymentDate = p.PaymentDate
		out.TotalValue = parseAmount(p.TotalValue)
		out.TotalValueExclVAT = parseAmount(p.TotalValueExclVAT)
		out.TotalValueForeignVAT = parseAmount(p.TotalValueForeignVAT)
		out.VATReverseCharge = p.VATReverseCharge == "1"
	}
	return out, nil
}

// GetConceptInfo consulta los entries reales ligados a un concepto.
func (c *Client) GetConceptInfo(ctx context.Context, conceptID int) (*ConceptInfo, error) {
	doc, root := c.newEnvelope()
	e := root.CreateElement("concept")
	e.CreateElement("conceptid").SetText(strconv.Itoa(conceptID))

	resp, err := c.post(ctx, conceptInfoPath, doc)
	if err != nil {
		return nil, err
	}

	out := &ConceptInfo{ConceptID: conceptID, Messages: resp.messages()}
	if resp.Concept != nil {
		out.ConceptID = resp.Concept.ConceptID
		out.EntryIDs = append(out.EntryIDs, resp.Concept.EntryIDs...)
	}
	return out, nil
}

// ── Construcción de la petición ───────────────────────────────────────────────

// newEnvelope crea el documento XML con el bloque <contract> de credenciales.
func (c *Client) newEnvelope() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("acumulus")

	contract := root.CreateElement("contract")
	contract.CreateElement("contractcode").SetText(c.cfg.ContractCode)
	contract.CreateElement("username").SetText(c.cfg.UserName)
	contract.CreateElement("password").SetText(c.cfg.Password)

	root.CreateElement("format").SetText("xml")
	return doc, root
}

// writeInvoicePayload serializa <customer> + <invoice> + <line> del documento.
func writeInvoicePayload(root *etree.Element, inv *entity.Invoice, source entity.InvoiceSource) {
	customer := root.CreateElement("customer")
	if inv.Customer.ContactID != "" {
		customer.CreateElement("contactyourid").SetText(inv.Customer.ContactID)
	}
	if inv.Customer.CompanyName != "" {
		customer.CreateElement("companyname1").SetText(inv.Customer.CompanyName)
	}
	customer.CreateElement("fullname").SetText(inv.Customer.FullName)
	if inv.Customer.Email != "" {
		customer.CreateElement("email").SetText(inv.Customer.Email)
	}
	if inv.Customer.CountryCode != "" {
		customer.CreateElement("countrycode").SetText(inv.Customer.CountryCode)
	}
	if inv.Customer.VATNumber != "" {
		customer.CreateElement("vatnumber").SetText(inv.Customer.VATNumber)
	}

	xInv := customer.CreateElement("invoice")
	if inv.Concept {
		xInv.CreateElement("concept").SetText("1")
	}
	if inv.Number != "" {
		xInv.CreateElement("number").SetText(inv.Number)
	}
	if !inv.IssueDate.IsZero() {
		xInv.CreateElement("issuedate").SetText(inv.IssueDate.Format("2006-01-02"))
	}
	if inv.Description != "" {
		xInv.CreateElement("description").SetText(inv.Description)
	}
	if inv.PaymentStatus != 0 {
		xInv.CreateElement("paymentstatus").SetText(strconv.Itoa(inv.PaymentStatus))
		if inv.PaymentStatus == entity.PaymentStatusPaid && !inv.PaymentDate.IsZero() {
			xInv.CreateElement("paymentdate").SetText(inv.PaymentDate.Format("2006-01-02"))
		}
	}
	// Referencia de la fuente para poder rastrear el documento en Acumulus.
	xInv.CreateElement("invoicenotes").SetText(source.Label())

	for _, line := range inv.Lines {
		xLine := xInv.CreateElement("line")
		if line.ItemNumber != "" {
			xLine.CreateElement("itemnumber").SetText(line.ItemNumber)
		}
		xLine.CreateElement("product").SetText(line.Product)
		xLine.CreateElement("quantity").SetText(line.Quantity.String())
		xLine.CreateElement("unitprice").SetText(line.UnitPrice.StringFixed(4))
		xLine.CreateElement("vatrate").SetText(line.VATRate.String())
	}
}

// post envía el documento al endpoint y parsea la respuesta.
func (c *Client) post(ctx context.Context, path string, doc *etree.Document) (*apiResponse, error) {
	payload, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("acumulus: serializar petición: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("acumulus: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acumulus: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("acumulus: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("acumulus: leer respuesta: %w", err)
	}

	return parseResponse(rawBody)
}

// ── Estructuras de respuesta ──────────────────────────────────────────────────

type apiResponse struct {
	XMLName  xml.Name        `xml:"acumulus"`
	Status   int             `xml:"status"`
	Errors   []apiMessage    `xml:"errors>error"`
	Warnings []apiMessage    `xml:"warnings>warning"`
	Invoice  *invoicePayload `xml:"invoice"`
	Entry    *entryPayload   `xml:"entry"`
	Concept  *conceptPayload `xml:"concept"`
}

type apiMessage struct {
	Code    string `xml:"code"`
	CodeTag string `xml:"codetag"`
	Message string `xml:"message"`
}

type invoicePayload struct {
	InvoiceNumber string `xml:"invoicenumber"`
	Token         string `xml:"token"`
	EntryID       int    `xml:"entryid"`
	ConceptID     int    `xml:"conceptid"`
}

type entryPayload struct {
	EntryID              int    `xml:"entryid"`
	Token                string `xml:"token"`
	InvoiceNumber        string `xml:"invoicenumber"`
	EntryDate            string `xml:"entrydate"`
	Deleted              string `xml:"deleted"` // timestamp de borrado, vacío si vivo
	PaymentStatus        int    `xml:"paymentstatus"`
	PaymentDate          string `xml:"paymentdate"`
	TotalValue           string `xml:"totalvalue"`
	TotalValueExclVAT    string `xml:"totalvalueexclvat"`
	TotalValueForeignVAT string `xml:"totalvalueforeignvat"`
	VATReverseCharge     string `xml:"vatreversecharge"`
}

type conceptPayload struct {
	ConceptID int   `xml:"conceptid"`
	EntryIDs  []int `xml:"entryid"`
}

// parseResponse tolera respuestas malformadas: las convierte en un resultado
// con error en Messages en lugar de abortar, igual que un SOAP Fault.
func parseResponse(rawBody []byte) (*apiResponse, error) {
	var resp apiResponse
	if err := xml.Unmarshal(rawBody, &resp); err != nil {
		return &apiResponse{
			Status: apiStatusException,
			Errors: []apiMessage{{
				Code:    "700",
				Message: "respuesta no parseable: " + truncate(string(rawBody), 512),
			}},
		}, nil
	}
	return &resp, nil
}

// messages convierte errores y warnings del API a la lista tipada de dominio.
func (r *apiResponse) messages() domacu.Messages {
	var msgs domacu.Messages
	for _, e := range r.Errors {
		msgs.AddError(classifyCode(e.Code), formatMessage(e))
	}
	for _, w := range r.Warnings {
		msgs.AddWarning(domacu.CodeRemote, formatMessage(w))
	}
	return msgs
}

// classifyCode traduce el código numérico del API a un código de dominio.
// 404* = recurso no encontrado; 406* = concepto demasiado antiguo para consultar.
func classifyCode(code string) string {
	switch {
	case strings.HasPrefix(code, "404"):
		return domacu.CodeNotFound
	case strings.HasPrefix(code, "406"):
		return domacu.CodeConceptTooOld
	default:
		return domacu.CodeRemote
	}
}

func formatMessage(m apiMessage) string {
	if m.Code == "" {
		return m.Message
	}
	return m.Code + ": " + m.Message
}

// parseAmount parsea importes del API; Zero si el campo viene vacío o corrupto.
func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
