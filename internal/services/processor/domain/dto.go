package domain

// BatchRecord is one entry of a pushed batch, in the event-source mapping shape
type BatchRecord struct {
	MessageID string `json:"messageId" validate:"required,max=128"`
	Body      string `json:"body"`
}

// BatchRequest is a pushed batch
type BatchRequest struct {
	Records []BatchRecord `json:"Records" validate:"max=100,dive"`
}

// ItemFailure names one record to retry
type ItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// BatchResponse reports partial batch failures
type BatchResponse struct {
	BatchItemFailures []ItemFailure `json:"batchItemFailures"`
}

// Messages converts the request to processor input
func (r BatchRequest) Messages() []Message {
	out := make([]Message, len(r.Records))
	for i, rec := range r.Records {
		out[i] = Message{MessageID: rec.MessageID, Body: []byte(rec.Body), ReceiveCount: 1}
	}
	return out
}

// ResponseOf renders an outcome; the failure list is never null
func ResponseOf(o Outcome) BatchResponse {
	resp := BatchResponse{BatchItemFailures: make([]ItemFailure, 0, len(o.FailedMessageIDs))}
	for _, id := range o.FailedMessageIDs {
		resp.BatchItemFailures = append(resp.BatchItemFailures, ItemFailure{ItemIdentifier: id})
	}
	return resp
}
