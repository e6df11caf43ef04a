package logging

import "github.com/sirupsen/logrus"

// BaseFields builds the action + config path pair shared by every CLI entry
// point.
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields carries the per-request keys the access log emits for every
// served response.
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}

// ServerFields describes a listener endpoint for lifecycle logs.
func ServerFields(host string, port int, https bool) logrus.Fields {
	return logrus.Fields{
		"host":  host,
		"port":  port,
		"https": https,
	}
}
