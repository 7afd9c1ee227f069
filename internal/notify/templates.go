package notify

import "fmt"

func PaymentReceived(to, orderID, transactionID string) Notification {
	return Notification{
		Kind:    KindPaymentReceived,
		To:      to,
		Subject: "Payment received",
		Body:    fmt.Sprintf("Payment for order %s was successful. Transaction: %s", orderID, transactionID),
	}
}

func OrderDelivered(to, orderID, itemID, trackingNumber string) Notification {
	return Notification{
		Kind:    KindOrderDelivered,
		To:      to,
		Subject: "Order Delivered",
		Body:    fmt.Sprintf("Your order %s item %s has been delivered. Tracking: %s", orderID, itemID, trackingNumber),
	}
}

func OrderCancelled(to, orderID string) Notification {
	return Notification{
		Kind:    KindOrderCancelled,
		To:      to,
		Subject: "Order cancelled due to payment timeout",
		Body:    fmt.Sprintf("Your order %s was cancelled because payment was not completed within the expected time.", orderID),
	}
}
