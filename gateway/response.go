package gateway

import "strings"

// Response is the uniform result of every gateway operation
type Response struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Authorization string            `json:"authorization,omitempty"`
	ErrorCode     string            `json:"errorCode,omitempty"`
	Params        map[string]string `json:"params"`
	Test          bool              `json:"test"`
	FraudReview   bool              `json:"fraudReview,omitempty"`
	AVSResult     AVSResult         `json:"avsResult"`
	CVVResult     CVVResult         `json:"cvvResult"`
}

// NewResponse creates a response with a non-nil params map
func NewResponse(success bool, message string, params map[string]string) *Response {
	if params == nil {
		params = make(map[string]string)
	}
	return &Response{
		Success: success,
		Message: message,
		Params:  params,
	}
}

var avsMessages = map[string]string{
	"A": "Street address matches, but 5-digit and 9-digit postal code do not match.",
	"B": "Street address matches, but postal code not verified.",
	"C": "Street address and postal code do not match.",
	"D": "Street address and postal code match.",
	"E": "AVS data is invalid or AVS is not allowed for this card type.",
	"F": "Card member's name does not match, but billing postal code matches.",
	"G": "Non-U.S. issuing bank does not support AVS.",
	"H": "Card member's name does not match. Street address and postal code match.",
	"I": "Address not verified.",
	"J": "Card member's name, billing address, and postal code match. Shipping information verified and chargeback protection guaranteed through the Fraud Protection Program.",
	"K": "Card member's name matches but billing address and billing postal code do not match.",
	"L": "Card member's name and billing postal code match, but billing address does not match.",
	"M": "Street address and postal code match.",
	"N": "Street address and postal code do not match.",
	"O": "Card member's name and billing address match, but billing postal code does not match.",
	"P": "Postal code matches, but street address not verified.",
	"Q": "Card member's name, billing address, and postal code match. Shipping information verified but chargeback protection not guaranteed.",
	"R": "System unavailable.",
	"S": "U.S.-issuing bank does not support AVS.",
	"T": "Card member's name does not match, but street address matches.",
	"U": "Address information unavailable.",
	"V": "Card member's name, billing address, and billing postal code match.",
	"W": "Street address does not match, but 9-digit postal code matches.",
	"X": "Street address and 9-digit postal code match.",
	"Y": "Street address and 5-digit postal code match.",
	"Z": "Street address does not match, but 5-digit postal code matches.",
}

var (
	avsStreetMatch = codeTable(map[string]string{
		"Y": "ABDHJMOQTVXY",
		"N": "CKLNWZ",
		"X": "GS",
	})
	avsPostalMatch = codeTable(map[string]string{
		"Y": "DHFJLMPQVWXYZ",
		"N": "ACKNO",
		"X": "GS",
	})
)

func codeTable(groups map[string]string) map[string]string {
	table := make(map[string]string)
	for result, codes := range groups {
		for _, c := range codes {
			table[string(c)] = result
		}
	}
	return table
}

// AVSResult is the normalized address verification outcome
type AVSResult struct {
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	StreetMatch string `json:"streetMatch,omitempty"`
	PostalMatch string `json:"postalMatch,omitempty"`
}

// NewAVSResult maps a processor AVS code to the standard table
func NewAVSResult(code string) AVSResult {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return AVSResult{}
	}
	return AVSResult{
		Code:        code,
		Message:     avsMessages[code],
		StreetMatch: avsStreetMatch[code],
		PostalMatch: avsPostalMatch[code],
	}
}

// NewAVSResultFromMatches builds a result from separate street and postal flags
func NewAVSResultFromMatches(street, postal string) AVSResult {
	street, postal = strings.ToUpper(street), strings.ToUpper(postal)
	code := ""
	switch {
	case street == "Y" && postal == "Y":
		code = "Y"
	case street == "Y" && postal == "N":
		code = "A"
	case street == "N" && postal == "Y":
		code = "Z"
	case street == "N" && postal == "N":
		code = "N"
	case street == "Y":
		code = "B"
	case postal == "Y":
		code = "P"
	case street == "" && postal == "":
		return AVSResult{}
	default:
		code = "I"
	}
	return NewAVSResult(code)
}

var cvvMessages = map[string]string{
	"D": "CVV check flagged transaction as suspicious",
	"I": "CVV failed data validation check",
	"M": "CVV matches",
	"N": "CVV does not match",
	"P": "CVV not processed",
	"S": "CVV should have been present",
	"U": "CVV request unable to be processed by issuer",
	"X": "Card does not support CVV",
}

// CVVResult is the normalized card verification value outcome
type CVVResult struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewCVVResult maps a processor CVV code to the standard table
func NewCVVResult(code string) CVVResult {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return CVVResult{}
	}
	return CVVResult{Code: code, Message: cvvMessages[code]}
}
