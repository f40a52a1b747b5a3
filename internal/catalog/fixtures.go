package catalog

func fixtures() []Detail {
	return []Detail{
		{
			Template: Template{
				ID:                  "1",
				Name:                "Daily Social Media Posts",
				Description:         "Automatically post scheduled content to multiple social media platforms.",
				Category:            "Marketing",
				Complexity:          "Medium",
				MakeScenarioID:      "make-scenario-id-1",
				RequiredConnections: []string{"Twitter", "Facebook", "LinkedIn"},
				ConfigParameters: []ConfigParameter{
					{Name: "postFrequency", Type: "select", Options: []string{"Daily", "Weekly"}, Default: "Daily"},
					{Name: "postTime", Type: "time", Default: "09:00"},
				},
				Thumbnail: "https://example.com/thumbnails/social-media.jpg",
			},
			LongDescription: "This automation template allows you to schedule and post content across multiple social media platforms automatically. Set the frequency and time for your posts, and the system will handle the rest.",
			Benefits: []string{
				"Save time on repetitive social media posting",
				"Maintain consistent posting schedule",
				"Reach audiences across multiple platforms",
			},
			SetupSteps: []string{
				"Connect your social media accounts",
				"Configure posting schedule",
				"Add content source (RSS feed, Google Sheets, etc.)",
			},
		},
		{
			Template: Template{
				ID:                  "2",
				Name:                "Lead Notifications",
				Description:         "Get instant notifications when new leads come in from your website.",
				Category:            "Sales",
				Complexity:          "Low",
				MakeScenarioID:      "make-scenario-id-2",
				RequiredConnections: []string{"Slack", "Google Forms"},
				ConfigParameters: []ConfigParameter{
					{Name: "notificationChannel", Type: "string", Default: "#leads"},
				},
				Thumbnail: "https://example.com/thumbnails/lead-notification.jpg",
			},
			LongDescription: "Never miss a lead again with instant notifications in your team communication platform. Any time a new lead form is submitted, your team will be alerted immediately.",
			Benefits: []string{
				"Respond to leads faster",
				"Improve conversion rates",
				"Keep your sales team informed",
			},
			SetupSteps: []string{
				"Connect your form provider",
				"Configure notification settings",
				"Set up your Slack channel",
			},
		},
		{
			Template: Template{
				ID:                  "3",
				Name:                "Invoice Automation",
				Description:         "Automatically generate and send invoices for new orders.",
				Category:            "Finance",
				Complexity:          "High",
				MakeScenarioID:      "make-scenario-id-3",
				RequiredConnections: []string{"Stripe", "Gmail", "Google Sheets"},
				ConfigParameters: []ConfigParameter{
					{Name: "invoiceTemplate", Type: "select", Options: []string{"Standard", "Detailed"}, Default: "Standard"},
					{Name: "sendCopy", Type: "boolean", Default: true},
					{Name: "ccEmail", Type: "email", Default: ""},
				},
				Thumbnail: "https://example.com/thumbnails/invoice-automation.jpg",
			},
			LongDescription: "Automate your entire invoicing process from generation to delivery. When new orders come in, this automation creates professional invoices and sends them to your customers.",
			Benefits: []string{
				"Eliminate manual invoice creation",
				"Reduce invoicing errors",
				"Get paid faster",
			},
			SetupSteps: []string{
				"Connect your payment processor",
				"Set up email delivery",
				"Configure invoice templates",
			},
		},
	}
}
