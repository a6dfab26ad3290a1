package server

type CommandRequest struct {
	Command uint16    `json:"command"`
	Params  []float32 `json:"params"` // up to 7, missing params are sent as NaN.
	// Ack defaults to true. With false the command is sent without waiting for an ack.
	Ack *bool `json:"ack,omitempty"`
}

type MessageRateRequest struct {
	MessageID uint32  `json:"message_id"`
	RateHz    float64 `json:"rate_hz"` // 0 or less disables the stream.
}

type CommandResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
