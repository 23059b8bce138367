// Package influxdb records storefront-auth outcomes as time series.
//
// Each authentication outcome becomes a point in the auth_events
// measurement tagged by action, role and outcome. Writes are batched and
// non-blocking so a slow or absent InfluxDB never delays a login.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordAuthEvent("login", "retailer", "success", time.Now())
package influxdb
