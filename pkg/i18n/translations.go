// Package i18n holds the display strings of the point-of-sale surface.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Default is the only language shipped
var Default = language.Indonesian

var messages = map[string]string{
	// General
	"appName":     "Dyad POS",
	"saveChanges": "Simpan Perubahan",
	"cancel":      "Batal",
	"delete":      "Hapus",

	// Settings
	"storeIdentity":      "Identitas Toko",
	"storeName":          "Nama Toko",
	"storeAddress":       "Alamat Toko",
	"storePhone":         "Nomor Telepon",
	"receiptNotes":       "Catatan di Struk",
	"toastStoreUpdated":  "Identitas toko berhasil diperbarui.",
	"toastLogoUploaded":  "Logo berhasil diunggah!",
	"errorLogoUpload":    "Gagal mengunggah logo: {error}",
	"errorSaveSettings":  "Gagal menyimpan pengaturan",
	"defaultStoreName":   "Dyad POS",
	"defaultReceiptNote": "Terima kasih atas pembelian Anda!",

	// Cashier
	"subtotal":       "Subtotal:",
	"tax":            "Pajak",
	"total":          "Total:",
	"tenderedAmount": "Uang Diterima",
	"change":         "Kembalian",
	"allCategories":  "Semua Kategori",

	// Receipt
	"receiptTitle":  "Struk Pembayaran",
	"thankYou":      "Terima kasih atas pembelian Anda!",
	"transactionId": "ID Transaksi",
	"totalPaid":     "Total Dibayar",
	"tendered":      "Diterima",
	"changeDue":     "Kembalian",
	"phonePrefix":   "Telp: {phone}",

	// Catalog
	"noCategory": "Tanpa Kategori",

	// Reports
	"totalRevenue":      "Total Pendapatan",
	"totalProfit":       "Total Keuntungan",
	"totalTransactions": "Total Transaksi",
	"totalItemsSold":    "Total Item Terjual",
	"sales":             "Penjualan",
	"weekdaySun":        "Min",
	"weekdayMon":        "Sen",
	"weekdayTue":        "Sel",
	"weekdayWed":        "Rab",
	"weekdayThu":        "Kam",
	"weekdayFri":        "Jum",
	"weekdaySat":        "Sab",

	// Notifications
	"insufficientFunds":     "Uang yang diterima ({tendered}) kurang dari total pembayaran ({total}).",
	"toastItemAdded":        "Item ditambahkan ke keranjang.",
	"toastItemRemoved":      "Item dihapus dari keranjang.",
	"toastCheckoutSuccess":  "Checkout berhasil! Total: {total}",
	"toastCartEmpty":        "Keranjang kosong.",
	"toastStockLimit":       "Tidak dapat menambahkan lebih dari {stock} {productName} ke keranjang.",
	"toastStockOnly":        "Hanya {stock} yang tersedia di stok.",
	"toastUnknownProduct":   "Produk {productId} tidak ditemukan.",
	"toastProductUpdated":   "Produk {productName} diperbarui.",
	"toastProductCreated":   "Produk {productName} dibuat.",
	"toastProductDeleted":   "Produk dihapus",
	"toastCategoryCreated":  "Kategori {categoryName} berhasil dibuat.",
	"toastCategoryUpdated":  "Kategori berhasil diperbarui.",
	"toastCategoryDeleted":  "Kategori berhasil dihapus.",
	"toastLowStock":         "Stok {productName} tinggal {stock}.",
	"errorCheckout":         "Gagal memproses transaksi",
	"errorStockConflict":    "Stok {productName} tidak mencukupi untuk transaksi ini.",
	"errorCreateProduct":    "Gagal membuat produk",
	"errorDuplicateProduct": "Produk dengan ID {productId} sudah ada.",
	"errorUpdateProduct":    "Gagal memperbarui produk",
	"errorDeleteProduct":    "Gagal menghapus produk",
	"errorCreateCategory":   "Gagal membuat kategori",
	"errorUpdateCategory":   "Gagal memperbarui kategori",
	"errorDeleteCategory":   "Gagal menghapus kategori",
}

// T returns the message for key with each {name} placeholder replaced once.
// Unknown keys are returned unchanged.
func T(key string, replacements map[string]any) string {
	text, ok := messages[key]
	if !ok {
		text = key
	}
	for placeholder, value := range replacements {
		text = strings.Replace(text, "{"+placeholder+"}", fmt.Sprint(value), 1)
	}
	return text
}

// Has reports whether key is present in the table
func Has(key string) bool {
	_, ok := messages[key]
	return ok
}
