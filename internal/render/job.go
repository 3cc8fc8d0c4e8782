package render

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidSignatureSource is the fatal validation error for a job carrying
// both or neither of the two signature sources. Nothing is persisted for
// such a job.
var ErrInvalidSignatureSource = errors.New("exactly one signature source must be supplied")

// Rect is a rectangle in PDF user space: points, origin at the bottom-left
// of the page. This is the convention of the data inside a PDF itself, so
// region coordinates read out of a source document can be used verbatim.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PageRegionRef points at a rectangular region of one page of a previously
// stored PDF. It lets an assignment reuse a signature captured inside an
// unrelated document without re-encoding any image.
type PageRegionRef struct {
	StorageKey string `json:"storageKey"`
	Page       int    `json:"page"`
	Rect       Rect   `json:"rect"`
}

// SignatureSource is exactly one of raw image bytes or a page-region pointer.
type SignatureSource struct {
	ImageData []byte         `json:"imageData,omitempty"`
	SourceRef *PageRegionRef `json:"sourceRef,omitempty"`
}

func (s SignatureSource) Validate() error {
	hasImage := len(s.ImageData) > 0
	hasRef := s.SourceRef != nil
	if hasImage == hasRef {
		return ErrInvalidSignatureSource
	}
	return nil
}

type Options struct {
	IsParental         bool `json:"isParental"`
	SaveActivityRecord bool `json:"saveActivityRecord"`
	CheckCompleteness  bool `json:"checkCompleteness"`
}

type ClaimSnapshot struct {
	ID           string    `json:"id"`
	AirlineName  string    `json:"airlineName"`
	FlightNumber string    `json:"flightNumber"`
	FlightDate   time.Time `json:"flightDate"`
}

type PassengerSnapshot struct {
	ID              string `json:"id"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Address         string `json:"address"`
	City            string `json:"city"`
	Country         string `json:"country"`
	ParentFirstName string `json:"parentFirstName,omitempty"`
	ParentLastName  string `json:"parentLastName,omitempty"`
}

// Job is the unit queued for asynchronous assignment rendering.
type Job struct {
	Claim     ClaimSnapshot     `json:"claimSnapshot"`
	Passenger PassengerSnapshot `json:"passengerSnapshot"`
	Options   Options           `json:"options"`
	Signature SignatureSource   `json:"signature"`
}

func (j *Job) Marshal() ([]byte, error) {
	if err := j.Signature.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

func UnmarshalJob(payload []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
