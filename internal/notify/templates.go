// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package notify

import (
	"fmt"
	"regexp"
	"strings"
)

// Email templates use {{VAR}} placeholders and {{#VAR}}...{{/VAR}}
// conditional blocks that render only when the variable is non-empty.
// Unknown placeholders are left in place so a missing variable is
// visible in delivered mail instead of silently blank.

const baseTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{SUBJECT}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f8f9f6;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <div style="background-color: white; border-radius: 10px; padding: 30px;">
            <div style="text-align: center; margin-bottom: 30px;">
                <h1 style="color: #556B2F; margin: 0; font-size: 28px;">HERD</h1>
                <p style="color: #556B2F; margin: 5px 0 0 0; font-size: 14px;">Homesteading Community</p>
            </div>
            {{CONTENT}}
            <div style="text-align: center; margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee;">
                <p style="color: #666; font-size: 14px;">Questions? Reply to this email or contact us at support@herd-app.com</p>
            </div>
        </div>
    </div>
</body>
</html>`

const hostApprovalRequestTemplate = `<h2 style="color: #3c4f21;">Booking Approval Required</h2>
<p>Hi {{HOST_NAME}},</p>
<p>You have a new booking request for your class <strong>{{CLASS_TITLE}}</strong> that requires your approval.</p>
<div style="background-color: #f8f9f6; border-left: 4px solid #556B2F; padding: 20px; margin: 20px 0;">
    <h3 style="color: #3c4f21;">Request Details</h3>
    <p><strong>Guest:</strong> {{GUEST_NAME}}</p>
    <p><strong>Students:</strong> {{STUDENT_COUNT}} ({{STUDENT_NAMES}})</p>
    <p><strong>Class Date:</strong> {{CLASS_DATE}}</p>
    <p><strong>Your Earnings:</strong> ${{HOST_EARNINGS}}</p>
</div>
<p><strong>Action Required:</strong> Payment will only be processed after your approval. If you decline, the guest will not be charged.</p>
<div style="text-align: center; margin: 30px 0;">
    <a href="{{DASHBOARD_URL}}" style="display: inline-block; background-color: #556B2F; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px;">Review Request</a>
</div>`

const hostConfirmedTemplate = `<h2 style="color: #3c4f21;">New Booking Received!</h2>
<p>Hi {{HOST_NAME}},</p>
<p>You have a new confirmed booking for your class <strong>{{CLASS_TITLE}}</strong>!</p>
<div style="background-color: #f8f9f6; border-left: 4px solid #556B2F; padding: 20px; margin: 20px 0;">
    <h3 style="color: #3c4f21;">Booking Details</h3>
    <p><strong>Guest:</strong> {{GUEST_NAME}}</p>
    <p><strong>Students:</strong> {{STUDENT_COUNT}} ({{STUDENT_NAMES}})</p>
    <p><strong>Class Date:</strong> {{CLASS_DATE}}</p>
    <p><strong>Your Earnings:</strong> ${{HOST_EARNINGS}}</p>
    <p><strong>Payment:</strong> Processed Successfully</p>
</div>
<div style="text-align: center; margin-top: 30px;">
    <a href="{{DASHBOARD_URL}}" style="display: inline-block; background-color: #556B2F; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px;">View in Dashboard</a>
</div>`

const guestConfirmedTemplate = `<h2 style="color: #3c4f21;">Booking Confirmed!</h2>
<p>Hi {{GUEST_NAME}},</p>
<p>Great news! Your booking has been confirmed for <strong>{{CLASS_TITLE}}</strong>!</p>
<div style="background-color: #f8f9f6; border-left: 4px solid #556B2F; padding: 20px; margin: 20px 0;">
    <h3 style="color: #3c4f21;">Your Booking Details</h3>
    <p><strong>Class:</strong> {{CLASS_TITLE}}</p>
    <p><strong>Instructor:</strong> {{INSTRUCTOR_NAME}}</p>
    <p><strong>Date:</strong> {{CLASS_DATE}}</p>
    <p><strong>Students:</strong> {{STUDENT_COUNT}} ({{STUDENT_NAMES}})</p>
    <p><strong>Total Paid:</strong> ${{TOTAL_AMOUNT}}</p>
    <p><strong>Location:</strong> {{CLASS_ADDRESS}}</p>
</div>
<div style="text-align: center; margin-top: 30px;">
    <a href="{{DASHBOARD_URL}}" style="display: inline-block; background-color: #556B2F; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px;">View in Dashboard</a>
</div>`

const guestDeniedTemplate = `<h2 style="color: #c54a2c;">Booking Update</h2>
<p>Hi {{GUEST_NAME}},</p>
<p>We wanted to let you know that your booking request for <strong>{{CLASS_TITLE}}</strong> has been declined by the instructor.</p>
<div style="background-color: #f8f9f6; border-left: 4px solid #c54a2c; padding: 20px; margin: 20px 0;">
    <h3 style="color: #8b3a1a;">Booking Details</h3>
    <p><strong>Class:</strong> {{CLASS_TITLE}}</p>
    <p><strong>Instructor:</strong> {{INSTRUCTOR_NAME}}</p>
    <p><strong>Date:</strong> {{CLASS_DATE}}</p>
    <p><strong>Students:</strong> {{STUDENT_COUNT}} ({{STUDENT_NAMES}})</p>
    {{#HOST_MESSAGE}}
    <p><strong>Message from Instructor:</strong> {{HOST_MESSAGE}}</p>
    {{/HOST_MESSAGE}}
</div>
<p><strong>Payment Status:</strong> No payment has been charged for this booking.</p>
<div style="text-align: center; margin-top: 30px;">
    <a href="{{CLASSES_URL}}" style="display: inline-block; background-color: #556B2F; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px;">Browse Other Classes</a>
</div>`

var (
	conditionalBlockRe = regexp.MustCompile(`\{\{#(\w+)\}\}([\s\S]*?)\{\{/(\w+)\}\}`)
	placeholderRe      = regexp.MustCompile(`\{\{(\w+)\}\}`)
	htmlTagRe          = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe       = regexp.MustCompile(`\n{3,}`)
)

// RenderTemplate expands a content template with variables, wraps it in
// the base layout, and derives a plain-text alternative.
func RenderTemplate(content string, vars map[string]string) (html, text string) {
	expanded := expandConditionals(content, vars)
	expanded = expandPlaceholders(expanded, vars)

	html = strings.Replace(baseTemplate, "{{CONTENT}}", expanded, 1)
	html = expandPlaceholders(html, vars)

	return html, htmlToText(expanded)
}

func expandConditionals(s string, vars map[string]string) string {
	return conditionalBlockRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := conditionalBlockRe.FindStringSubmatch(match)
		// Mismatched open/close names render nothing
		if parts[1] != parts[3] {
			return ""
		}
		if vars[parts[1]] == "" {
			return ""
		}
		return parts[2]
	})
}

func expandPlaceholders(s string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// htmlToText strips markup for the multipart text alternative.
func htmlToText(html string) string {
	text := strings.ReplaceAll(html, "</p>", "\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")
	text = strings.ReplaceAll(text, "</h3>", "\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// FormatMoney renders an amount for email display, always with cents.
func FormatMoney(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// FormatCount renders an integer for email display.
func FormatCount(n int) string {
	return fmt.Sprintf("%d", n)
}
