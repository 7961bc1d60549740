package feed

// Vendor tr_type values for the subscribe envelope.
const (
	trTypeSubscribe   = "1"
	trTypeUnsubscribe = "2"
)

// SubStatus tracks a subscription through its lifecycle: created Pending on
// request, promoted to Active by the vendor acknowledgment frame.
type SubStatus int

const (
	SubPending SubStatus = iota
	SubActive
)

// Pair identifies one realtime registration: a transaction kind plus the
// instrument it applies to.
type Pair struct {
	TrID string
	Code string
}

// SubscriptionEntry is one live registry entry, owned by the supervisor.
type SubscriptionEntry struct {
	Pair
	Status SubStatus
}

// subscribeRequest is the JSON envelope the vendor expects for subscribe
// (tr_type "1") and unsubscribe (tr_type "2") requests.
type subscribeRequest struct {
	Header subscribeHeader `json:"header"`
	Body   subscribeBody   `json:"body"`
}

type subscribeHeader struct {
	ApprovalKey string `json:"approval_key"`
	CustType    string `json:"custtype"`
	TrType      string `json:"tr_type"`
	ContentType string `json:"content-type"`
}

type subscribeBody struct {
	Input subscribeInput `json:"input"`
}

type subscribeInput struct {
	TrID  string `json:"tr_id"`
	TrKey string `json:"tr_key"`
}

func newSubscribeRequest(approvalKey, custType, trType, trID, trKey string) subscribeRequest {
	return subscribeRequest{
		Header: subscribeHeader{
			ApprovalKey: approvalKey,
			CustType:    custType,
			TrType:      trType,
			ContentType: "utf-8",
		},
		Body: subscribeBody{
			Input: subscribeInput{TrID: trID, TrKey: trKey},
		},
	}
}
