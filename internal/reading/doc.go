// Package reading stores and serves sensor readings uploaded by the IPS
// field device.
//
// Readings are append-only. The store assigns each row its timestamp and
// the latest reading is the row with the greatest timestamp. Uploads arrive
// over HTTP or, optionally, over MQTT; both paths share ParseUpload and
// Service.Record so validation and fan-out behave identically.
package reading
