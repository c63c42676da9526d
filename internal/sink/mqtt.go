package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
)

// Publisher MQTT 发布能力（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// BeatMessage MQTT 心跳消息
type BeatMessage struct {
	ObservationID string    `json:"observation_id"`
	PatientID     string    `json:"patient_id"`
	DeviceID      string    `json:"device_id"`
	HeartRate     int       `json:"heart_rate"`
	Timestamp     time.Time `json:"timestamp"`
}

// MQTTSink 将每次心跳发布到 heartrate/<device>/beat
type MQTTSink struct {
	publisher     Publisher
	topicTemplate string
	qos           byte
}

// NewMQTTSink 创建 MQTT 后端；topicTemplate 含一个 %s（设备 ID）
func NewMQTTSink(publisher Publisher, topicTemplate string, qos byte) *MQTTSink {
	return &MQTTSink{
		publisher:     publisher,
		topicTemplate: topicTemplate,
		qos:           qos,
	}
}

// Name 后端名称
func (s *MQTTSink) Name() string {
	return "mqtt"
}

// Topic 观测对应的主题
func (s *MQTTSink) Topic(obs *models.HeartRateObservation) string {
	device := obs.DeviceID()
	if device == "" {
		device = "unknown"
	}
	return fmt.Sprintf(s.topicTemplate, device)
}

// Insert 发布一条心跳消息
func (s *MQTTSink) Insert(ctx context.Context, obs *models.HeartRateObservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(BeatMessage{
		ObservationID: obs.ID,
		PatientID:     obs.PatientID(),
		DeviceID:      obs.DeviceID(),
		HeartRate:     obs.HeartRate(),
		Timestamp:     obs.EffectiveDateTime,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal beat message: %w", err)
	}
	return s.publisher.Publish(s.Topic(obs), s.qos, false, payload)
}
