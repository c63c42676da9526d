package models

import "time"

// MessageTypeBioData 推送给观看端的消息类型
const MessageTypeBioData = "BIO_DATA"

// BioDataMessage 推送给观看端的实时数据消息
type BioDataMessage struct {
	Type      string     `json:"type"`
	BPM       int        `json:"bpm"`
	Raw       int        `json:"raw"`
	LastBeat  *time.Time `json:"last_beat"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewBioDataMessage 由读数快照构建推送消息
func NewBioDataMessage(r LiveReading, now time.Time) BioDataMessage {
	return BioDataMessage{
		Type:      MessageTypeBioData,
		BPM:       r.BPM,
		Raw:       r.Raw,
		LastBeat:  r.LastBeat,
		Timestamp: now.UTC(),
	}
}

// HeartRateStats 一段时间内的心率统计
type HeartRateStats struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
	Min   int       `json:"min"`
	Max   int       `json:"max"`
	Avg   int       `json:"avg"`
}

// ComputeHeartRateStats 计算统计值；无数据时 min/max/avg 均为 0，平均值取整
func ComputeHeartRateStats(start, end time.Time, observations []*HeartRateObservation) HeartRateStats {
	stats := HeartRateStats{Start: start.UTC(), End: end.UTC(), Count: len(observations)}
	if len(observations) == 0 {
		return stats
	}

	sum := 0
	for i, obs := range observations {
		v := obs.HeartRate()
		if i == 0 || v < stats.Min {
			stats.Min = v
		}
		if i == 0 || v > stats.Max {
			stats.Max = v
		}
		sum += v
	}
	stats.Avg = sum / len(observations)
	return stats
}
