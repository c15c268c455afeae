package mqtt

// IPS topic tree.
const (
	// TopicLatest carries the most recently stored reading, retained.
	TopicLatest = "ips/sensor/latest"

	// TopicUpload is where devices publish readings when ingestion is
	// enabled. Payloads match the POST /upload_data body.
	TopicUpload = "ips/sensor/upload"

	// TopicStatus carries the service presence, including the will.
	TopicStatus = "ips/system/status"
)
