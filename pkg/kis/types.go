package kis

import "encoding/json"

// Response is the generic envelope KIS REST endpoints return.
// rt_cd "0" means success; output decoding is delayed per endpoint.
type Response struct {
	RtCd   string          `json:"rt_cd"`
	MsgCd  string          `json:"msg_cd"`
	Msg1   string          `json:"msg1"`
	Output json.RawMessage `json:"output"`
}

// approvalResponse is the body of POST /oauth2/Approval.
type approvalResponse struct {
	ApprovalKey string `json:"approval_key"`
}

// tokenResponse is the body of POST /oauth2/tokenP.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// priceOutput is the inquire-price output block. All numerics arrive as
// strings on the wire.
type priceOutput struct {
	Price     string `json:"stck_prpr"` // current price
	Open      string `json:"stck_oprc"`
	High      string `json:"stck_hgpr"`
	Low       string `json:"stck_lwpr"`
	AccVolume string `json:"acml_vol"` // session accumulated volume
}

// orderOutput is the order-cash output block.
type orderOutput struct {
	OrderNo string `json:"ODNO"`
}

// orderRequest is the order-cash request body. ORD_DVSN "01" is a market
// order with ORD_UNPR "0".
type orderRequest struct {
	CANO       string `json:"CANO"`
	AcntPrdtCd string `json:"ACNT_PRDT_CD"`
	PDNO       string `json:"PDNO"`
	OrdDvsn    string `json:"ORD_DVSN"`
	OrdQty     string `json:"ORD_QTY"`
	OrdUnpr    string `json:"ORD_UNPR"`
}
