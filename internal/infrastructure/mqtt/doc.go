// Package mqtt carries IPS sensor readings over an MQTT broker.
//
// MQTT is optional. With mqtt.enabled false, Connect returns ErrDisabled
// and the HTTP API works on its own.
//
// # Topics
//
//	ips/sensor/latest   retained JSON of the newest stored reading
//	ips/sensor/upload   device uploads, same body as POST /upload_data
//	ips/system/status   online / offline presence, including the will
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeUploads(ctx, ingestor.HandleUpload)
package mqtt
