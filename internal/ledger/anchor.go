package ledger

import (
	"context"
	"strings"
	"time"

	issuanceports "nexuscred/internal/issuance/ports"
	"nexuscred/internal/platform/tracer"
)

type anchorRequest struct {
	BatchID    string `json:"batch_id"`
	IssuerID   string `json:"issuer_id"`
	MerkleRoot string `json:"merkle_root"`
}

type anchorResponse struct {
	TxRef       string    `json:"tx_ref"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// HTTPLedger anchors batch roots through the ledger gateway's POST /anchor.
type HTTPLedger struct {
	client *jsonClient
	tracer tracer.Tracer
	now    func() time.Time
}

func NewHTTPLedger(cfg ClientConfig, t tracer.Tracer) *HTTPLedger {
	if cfg.Name == "" {
		cfg.Name = "ledger"
	}
	if t == nil {
		t = tracer.NewNoop()
	}
	return &HTTPLedger{client: newJSONClient(cfg), tracer: t, now: time.Now}
}

func (l *HTTPLedger) Anchor(ctx context.Context, req issuanceports.AnchorRequest) (receipt *issuanceports.AnchorReceipt, err error) {
	ctx, span := l.tracer.Start(ctx, tracer.SpanLedgerCall,
		tracer.String(tracer.AttrBatchID, req.BatchID.String()),
		tracer.String(tracer.AttrIssuerID, req.IssuerID.String()),
	)
	defer func() { span.End(err) }()

	var resp anchorResponse
	err = l.client.post(ctx, "/anchor", anchorRequest{
		BatchID:    req.BatchID.String(),
		IssuerID:   req.IssuerID.String(),
		MerkleRoot: "0x" + req.MerkleRoot.Hex(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.TxRef) == "" {
		return nil, NewCollaboratorError(CategoryBadData, l.client.name, "confirmation without tx_ref", nil)
	}
	if resp.ConfirmedAt.IsZero() {
		resp.ConfirmedAt = l.now()
	}
	return &issuanceports.AnchorReceipt{TxRef: resp.TxRef, ConfirmedAt: resp.ConfirmedAt}, nil
}
