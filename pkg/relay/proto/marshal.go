package proto

import (
	"encoding/json"
)

func MarshalNewHelloAckMessage(userID string) ([]byte, error) {
	return json.Marshal(HelloAckMessage{
		Type:   MessageTypeConnection,
		Action: actionSayHello,
		UserID: userID,
	})
}

func MarshalNewDeviceStatusMessage(deviceID, status string) ([]byte, error) {
	return json.Marshal(StatusMessage{
		Type:   MessageTypeStatus,
		SSID:   deviceID,
		Status: status,
	})
}

func MarshalNewFrontendStatusMessage(userID, status string) ([]byte, error) {
	return json.Marshal(StatusMessage{
		Type:   MessageTypeStatus,
		UserID: userID,
		Status: status,
	})
}

func MarshalNewDeviceLinkedMessage(deviceID, userID string) ([]byte, error) {
	return json.Marshal(DeviceLinkedMessage{
		Type:       MessageTypeDeviceLinked,
		DeviceName: deviceID,
		UserID:     userID,
	})
}

func MarshalNewDeviceUnavailableMessage(deviceID string) ([]byte, error) {
	return json.Marshal(DeviceUnavailableMessage{
		Type:       MessageTypeDeviceUnavailable,
		DeviceName: deviceID,
		Message:    "Device is already in use by another user",
	})
}

// MarshalNewDeviceConnectionMessage answers a connection query. An empty
// deviceID means the user owns no device.
func MarshalNewDeviceConnectionMessage(deviceID string, connected bool) ([]byte, error) {
	msg := DeviceConnectionMessage{
		Type:       MessageTypeDeviceConnection,
		DeviceName: deviceID,
		Message:    ConnectionNotConnected,
	}
	if connected {
		msg.Message = ConnectionConnected
	}
	return json.Marshal(msg)
}

func MarshalNewNFCEventMessage(uid, deviceID string) ([]byte, error) {
	return json.Marshal(NFCEventMessage{
		Type:       MessageTypeNFCEvent,
		UID:        uid,
		DeviceName: deviceID,
	})
}

func MarshalNewSignupMessage(fullName, department string) ([]byte, error) {
	return json.Marshal(SignupMessage{
		Type:       MessageTypeSignup,
		FullName:   fullName,
		Department: department,
	})
}
