// Package influxdb records sensor reading history in InfluxDB v2.
//
// Every stored reading becomes one "sensor_reading" point stamped with the
// time the relational store assigned, so the history can be graphed while
// the relational store keeps serving the latest value.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WriteReading(ctx, rd)
//
// Writes are batched (batch_size, flush_interval). Batch failures happen
// after WriteReading returns and are logged by the client.
package influxdb
