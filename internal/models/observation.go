package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LOINC / UCUM 编码
const (
	LOINCSystem            = "http://loinc.org"
	LOINCHeartRateCode     = "8867-4"
	HeartRateDisplay       = "Heart rate"
	UCUMSystem             = "http://unitsofmeasure.org"
	HeartRateUnit          = "beats/minute"
	HeartRateUnitCode      = "/min"
	ObservationCategory    = "vital-signs"
	ObservationCategoryURI = "http://terminology.hl7.org/CodeSystem/observation-category"
	ObservationStatus      = "final"
	ObservationResource    = "Observation"
)

// HeartRateObservation FHIR R4 Observation（心率）
type HeartRateObservation struct {
	ResourceType      string            `json:"resourceType"`
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	Category          []CodeableConcept `json:"category,omitempty"`
	Code              CodeableConcept   `json:"code"`
	Subject           Reference         `json:"subject"`
	EffectiveDateTime time.Time         `json:"effectiveDateTime"`
	ValueQuantity     Quantity          `json:"valueQuantity"`
	Device            *Reference        `json:"device,omitempty"`
}

// CodeableConcept FHIR CodeableConcept
type CodeableConcept struct {
	Coding []Coding `json:"coding"`
	Text   string   `json:"text,omitempty"`
}

// Coding FHIR Coding
type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// Reference FHIR Reference
type Reference struct {
	Reference string `json:"reference"`
	Display   string `json:"display,omitempty"`
}

// Quantity FHIR Quantity
type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	System string  `json:"system"`
	Code   string  `json:"code"`
}

// Subject 观测对象（患者与设备）
type Subject struct {
	PatientID      string
	PatientDisplay string
	DeviceID       string
	DeviceDisplay  string
}

// NewHeartRateObservation 由心跳事件构建 FHIR Observation
func NewHeartRateObservation(ev BeatEvent, subject Subject) *HeartRateObservation {
	obs := &HeartRateObservation{
		ResourceType: ObservationResource,
		ID:           uuid.NewString(),
		Status:       ObservationStatus,
		Category: []CodeableConcept{{
			Coding: []Coding{{System: ObservationCategoryURI, Code: ObservationCategory, Display: "Vital Signs"}},
		}},
		Code: CodeableConcept{
			Coding: []Coding{{System: LOINCSystem, Code: LOINCHeartRateCode, Display: HeartRateDisplay}},
			Text:   HeartRateDisplay,
		},
		Subject: Reference{
			Reference: fmt.Sprintf("Patient/%s", subject.PatientID),
			Display:   subject.PatientDisplay,
		},
		EffectiveDateTime: ev.At.UTC(),
		ValueQuantity: Quantity{
			Value:  float64(ev.BPM),
			Unit:   HeartRateUnit,
			System: UCUMSystem,
			Code:   HeartRateUnitCode,
		},
	}
	if subject.DeviceID != "" {
		obs.Device = &Reference{
			Reference: fmt.Sprintf("Device/%s", subject.DeviceID),
			Display:   subject.DeviceDisplay,
		}
	}
	return obs
}

// HeartRate 心率整数值
func (o *HeartRateObservation) HeartRate() int {
	return int(o.ValueQuantity.Value)
}

// PatientID 从 subject 引用中取出患者 ID
func (o *HeartRateObservation) PatientID() string {
	return strings.TrimPrefix(o.Subject.Reference, "Patient/")
}

// DeviceID 从 device 引用中取出设备 ID，未关联设备时为空
func (o *HeartRateObservation) DeviceID() string {
	if o.Device == nil {
		return ""
	}
	return strings.TrimPrefix(o.Device.Reference, "Device/")
}
