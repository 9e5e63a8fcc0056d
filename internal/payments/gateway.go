package payments

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/phoneshop-backend/pkg/config"
)

const (
	gatewayVersion   = "2.1.0"
	gatewayCommand   = "pay"
	gatewayCurrency  = "VND"
	gatewayOrderType = "other"
	gatewayTimestamp = "20060102150405"
)

var hundred = decimal.NewFromInt(100)

// PaymentRequest describes one redirect to the hosted payment page.
type PaymentRequest struct {
	OrderID   int64
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
}

// Gateway builds signed redirect URLs and verifies signed callbacks.
type Gateway struct {
	cfg    config.VNPayConfig
	signer *Signer
	loc    *time.Location
	now    func() time.Time
}

// NewGateway builds a gateway adapter; timestamps are rendered in loc.
func NewGateway(cfg config.VNPayConfig, loc *time.Location) (*Gateway, error) {
	if strings.TrimSpace(cfg.TmnCode) == "" {
		return nil, errors.New("vnpay tmn code is required")
	}
	if strings.TrimSpace(cfg.PayURL) == "" {
		return nil, errors.New("vnpay pay url is required")
	}
	if strings.TrimSpace(cfg.ReturnURL) == "" {
		return nil, errors.New("vnpay return url is required")
	}
	signer, err := NewSigner(cfg.HashSecret)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Gateway{
		cfg:    cfg,
		signer: signer,
		loc:    loc,
		now:    time.Now,
	}, nil
}

// BuildURL returns the signed redirect URL for req.
func (g *Gateway) BuildURL(req PaymentRequest) (string, error) {
	if req.OrderID <= 0 {
		return "", errors.New("order id is required")
	}
	if !req.Amount.IsPositive() {
		return "", errors.New("amount must be positive")
	}

	created := g.now().In(g.loc)
	expiry := g.cfg.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	locale := g.cfg.Locale
	if locale == "" {
		locale = "vn"
	}
	clientIP := req.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	info := req.OrderInfo
	if info == "" {
		info = fmt.Sprintf("Thanh toan don hang %d", req.OrderID)
	}

	params := url.Values{}
	params.Set(ParamVersion, gatewayVersion)
	params.Set(ParamCommand, gatewayCommand)
	params.Set(ParamTmnCode, g.cfg.TmnCode)
	params.Set(ParamAmount, MinorUnits(req.Amount))
	params.Set(ParamCurrCode, gatewayCurrency)
	params.Set(ParamTxnRef, strconv.FormatInt(req.OrderID, 10))
	params.Set(ParamOrderInfo, info)
	params.Set(ParamOrderType, gatewayOrderType)
	params.Set(ParamLocale, locale)
	params.Set(ParamReturnURL, g.cfg.ReturnURL)
	params.Set(ParamIPAddr, clientIP)
	params.Set(ParamCreateDate, created.Format(gatewayTimestamp))
	params.Set(ParamExpireDate, created.Add(expiry).Format(gatewayTimestamp))

	return g.cfg.PayURL + "?" + Canonical(params) + "&" + ParamSecureHash + "=" + g.signer.Sign(params), nil
}

// Verify checks the signature carried by callback params.
func (g *Gateway) Verify(params url.Values) bool {
	return g.signer.Verify(params)
}

// MinorUnits renders amount multiplied by 100 as an integer string, the
// gateway's amount encoding.
func MinorUnits(amount decimal.Decimal) string {
	return amount.Mul(hundred).Round(0).String()
}
